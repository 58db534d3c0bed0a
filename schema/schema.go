// Package schema is the session-based permission gate in front of the
// FLQL dispatcher: it maps a login to a session, a session to a bound
// database, and checks that a statement's permission class is granted to
// the session's user before routing it to that database's dispatcher.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"flinch/flinchdb"
	"flinch/query"
	"flinch/query/flql"
	"flinch/store"
)

// MagicDB is the pseudo-database membership granting cross-database
// administrative rights to its bound user.
const MagicDB = "*"

// ReservedName is the database name no caller may claim.
const ReservedName = "flinch"

var dbNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Permission is one of the six permission classes a user can be granted.
type Permission string

const (
	AssignUser       Permission = "assign_user"
	CreateCollection Permission = "create_collection"
	DropCollection   Permission = "drop_collection"
	Read             Permission = "read"
	Write            Permission = "write"
	Flush            Permission = "flush"
)

var (
	ErrDbExists            = errors.New("schema: database already exists")
	ErrDbNotExists         = errors.New("schema: no such database")
	ErrUserExists          = errors.New("schema: user already exists")
	ErrNoSuchUser          = errors.New("schema: no such user")
	ErrInvalidPassword     = errors.New("schema: invalid password")
	ErrInvalidPermission   = errors.New("schema: invalid permission payload")
	ErrMalformedName       = errors.New("schema: malformed db or user name")
	ErrPasswordTooShort    = errors.New("schema: password too short")
	ErrMissingSession      = errors.New("schema: no such session")
	ErrOperationNotAllowed = errors.New("schema: operation not permitted")
)

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// DBUser is a single database-scoped credential and permission set.
type DBUser struct {
	DB           string       `json:"db"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"password_hash"`
	Permissions  []Permission `json:"permissions"`
}

func (u *DBUser) has(p Permission) bool {
	for _, granted := range u.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

type dbNewRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type dbPermitRequest struct {
	DB          string       `json:"db"`
	Username    string       `json:"username"`
	Password    string       `json:"password"`
	Permissions []Permission `json:"permissions"`
}

type dbDropUserRequest struct {
	DB       string `json:"db"`
	Username string `json:"username"`
}

// Schemas is the top-level auth gate owning every sub-database.
type Schemas struct {
	mu        sync.RWMutex
	dataDir   string
	internal  *store.Store
	databases map[string]*flinchdb.Database
	dispatch  map[string]*query.Dispatcher
	users     map[string]map[string]*DBUser // db name -> username -> record
	sessions  map[string]*DBUser            // session id -> bound user record
}

// Open boots the auth gate: it loads the internal db-list/db-user records
// from dataDir, reopens every known sub-database, and bootstraps a root
// user under the magic database if none exists yet.
func Open(dataDir, rootUsername, rootPassword string) (*Schemas, error) {
	internal, err := store.Open(filepath.Join(dataDir, "__flinch__internal__.db"))
	if err != nil {
		return nil, err
	}

	s := &Schemas{
		dataDir:   dataDir,
		internal:  internal,
		databases: make(map[string]*flinchdb.Database),
		dispatch:  make(map[string]*query.Dispatcher),
		users:     make(map[string]map[string]*DBUser),
		sessions:  make(map[string]*DBUser),
	}

	dbEntries, err := internal.Prefix(store.DBListPrefix)
	if err != nil {
		return nil, err
	}
	for _, kv := range dbEntries {
		name := string(kv.Value)
		if err := s.openDatabase(name); err != nil {
			return nil, fmt.Errorf("schema: reopen database %s: %w", name, err)
		}
	}

	userEntries, err := internal.Prefix(store.DBUserPrefix)
	if err != nil {
		return nil, err
	}
	for _, kv := range userEntries {
		var u DBUser
		if err := json.Unmarshal(kv.Value, &u); err != nil {
			continue
		}
		s.registerUser(&u)
	}

	if _, ok := s.users[MagicDB][rootUsername]; !ok {
		root := &DBUser{
			DB:           MagicDB,
			Username:     rootUsername,
			PasswordHash: hashPassword(rootPassword),
			Permissions:  []Permission{AssignUser, CreateCollection, DropCollection, Read, Write, Flush},
		}
		if err := s.persistUser(root); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Schemas) registerUser(u *DBUser) {
	byName, ok := s.users[u.DB]
	if !ok {
		byName = make(map[string]*DBUser)
		s.users[u.DB] = byName
	}
	byName[u.Username] = u
}

func (s *Schemas) persistUser(u *DBUser) error {
	s.registerUser(u)
	return s.internal.PutAny(store.DBUserPrefix+u.DB+u.Username, u)
}

func (s *Schemas) openDatabase(name string) error {
	path := filepath.Join(s.dataDir, name+".bolt")
	db, bootErrs := flinchdb.Open(path)
	if db == nil && len(bootErrs) > 0 {
		return bootErrs[0]
	}
	s.databases[name] = db
	s.dispatch[name] = query.New(db)
	return nil
}

func validateDbName(dbName string) error {
	if dbName == ReservedName {
		return ErrMalformedName
	}
	if !dbNamePattern.MatchString(dbName) || len(dbName) < 4 || len(dbName) > 10 {
		return ErrMalformedName
	}
	return nil
}

func validateUserCreds(username, password string) error {
	if len(username) < 4 || len(username) > 20 {
		return ErrMalformedName
	}
	if len(password) < 4 {
		return ErrPasswordTooShort
	}
	return nil
}

// NewDatabase creates a sub-database and its first (owning) user, with
// every permission granted.
func (s *Schemas) NewDatabase(req dbNewRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateDbName(req.Name); err != nil {
		return err
	}
	if err := validateUserCreds(req.Username, req.Password); err != nil {
		return err
	}
	if _, ok := s.databases[req.Name]; ok {
		return ErrDbExists
	}

	if err := s.openDatabase(req.Name); err != nil {
		return err
	}
	if err := s.internal.PutAny(store.DBListPrefix+uuid.NewString(), req.Name); err != nil {
		return err
	}

	owner := &DBUser{
		DB:           req.Name,
		Username:     req.Username,
		PasswordHash: hashPassword(req.Password),
		Permissions:  []Permission{AssignUser, CreateCollection, DropCollection, Read, Write, Flush},
	}
	return s.persistUser(owner)
}

// DropDatabase removes a sub-database and every one of its users.
func (s *Schemas) DropDatabase(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.databases[name]
	if !ok {
		return ErrDbNotExists
	}
	for _, coll := range db.Ls() {
		_ = db.Drop(coll)
	}
	db.Close()
	delete(s.databases, name)
	delete(s.dispatch, name)

	for username := range s.users[name] {
		_ = s.internal.Remove(store.DBUserPrefix + name + username)
	}
	delete(s.users, name)

	for sid, u := range s.sessions {
		if u.DB == name {
			delete(s.sessions, sid)
		}
	}
	return nil
}

// Permit creates or updates a user's permission set within a database.
// Only callable by a session holding AssignUser or magic-db membership.
func (s *Schemas) Permit(req dbPermitRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.databases[req.DB]; !ok {
		return ErrDbNotExists
	}
	if err := validateUserCreds(req.Username, req.Password); err != nil {
		return err
	}

	u := &DBUser{
		DB:           req.DB,
		Username:     req.Username,
		PasswordHash: hashPassword(req.Password),
		Permissions:  req.Permissions,
	}
	return s.persistUser(u)
}

// DropUser removes a single user record from a database.
func (s *Schemas) DropUser(req dbDropUserRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.users[req.DB]
	if !ok {
		return ErrDbNotExists
	}
	if _, ok := byName[req.Username]; !ok {
		return ErrNoSuchUser
	}
	delete(byName, req.Username)
	for sid, u := range s.sessions {
		if u.DB == req.DB && u.Username == req.Username {
			delete(s.sessions, sid)
		}
	}
	return s.internal.Remove(store.DBUserPrefix + req.DB + req.Username)
}

// Login authenticates user/password against db and returns a fresh
// session id bound to that user record.
func (s *Schemas) Login(username, password, db string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.users[db]
	if !ok {
		return "", ErrDbNotExists
	}
	u, ok := byName[username]
	if !ok {
		return "", ErrNoSuchUser
	}
	if u.PasswordHash != hashPassword(password) {
		return "", ErrInvalidPassword
	}

	sid := uuid.NewString()
	s.sessions[sid] = u
	return sid, nil
}

// Logout invalidates a session.
func (s *Schemas) Logout(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func requiredPermission(stmt *flql.Statement) (Permission, bool) {
	switch stmt.Kind {
	case flql.KindGet, flql.KindSearch, flql.KindLikeSearch, flql.KindExists, flql.KindLength:
		return Read, true
	case flql.KindPut, flql.KindTTL, flql.KindDelete:
		return Write, true
	case flql.KindNew:
		return CreateCollection, true
	case flql.KindDrop:
		return DropCollection, true
	case flql.KindFlush:
		return Flush, true
	default:
		return "", false
	}
}

func isDbScoped(kind flql.Kind) bool {
	switch kind {
	case flql.KindDBNew, flql.KindDBDrop, flql.KindDBPermit, flql.KindDBDropUser:
		return true
	}
	return false
}

// FLQL resolves sessionID to its bound user, checks the statement's
// permission class, and dispatches it against the bound database (or
// handles it directly if it is one of the db-scoped statements, which
// require magic-db membership or AssignUser).
func (s *Schemas) FLQL(statement, sessionID string) query.QueryResult {
	s.mu.RLock()
	u, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return errorResult(ErrMissingSession)
	}

	stmt, err := flql.Parse(statement)
	if err != nil {
		return errorResult(err)
	}

	if isDbScoped(stmt.Kind) {
		if u.DB != MagicDB && !u.has(AssignUser) {
			return errorResult(ErrOperationNotAllowed)
		}
		return s.dispatchDbScoped(stmt)
	}

	perm, ok := requiredPermission(stmt)
	if !ok {
		return errorResult(fmt.Errorf("schema: cannot classify statement %v", stmt.Kind))
	}
	if !u.has(perm) {
		return errorResult(ErrOperationNotAllowed)
	}

	s.mu.RLock()
	d, ok := s.dispatch[u.DB]
	s.mu.RUnlock()
	if !ok {
		return errorResult(ErrDbNotExists)
	}
	return d.Execute(statement)
}

func (s *Schemas) dispatchDbScoped(stmt *flql.Statement) query.QueryResult {
	switch stmt.Kind {
	case flql.KindDBNew:
		var req dbNewRequest
		if err := json.Unmarshal([]byte(stmt.JSON), &req); err != nil {
			return errorResult(err)
		}
		return wrapErr(s.NewDatabase(req))
	case flql.KindDBDrop:
		return wrapErr(s.DropDatabase(stmt.DB))
	case flql.KindDBPermit:
		var req dbPermitRequest
		if err := json.Unmarshal([]byte(stmt.JSON), &req); err != nil {
			return errorResult(err)
		}
		return wrapErr(s.Permit(req))
	case flql.KindDBDropUser:
		var req dbDropUserRequest
		if err := json.Unmarshal([]byte(stmt.JSON), &req); err != nil {
			return errorResult(err)
		}
		return wrapErr(s.DropUser(req))
	default:
		return errorResult(fmt.Errorf("schema: unreachable db-scoped kind %v", stmt.Kind))
	}
}

func errorResult(err error) query.QueryResult {
	return query.QueryResult{Error: err.Error()}
}

func wrapErr(err error) query.QueryResult {
	if err != nil {
		return errorResult(err)
	}
	return query.QueryResult{}
}

// Close shuts down every sub-database's background workers.
func (s *Schemas) Close() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, db := range s.databases {
		db.Close()
	}
}
