package document

import "errors"

// ErrParse is returned when raw bytes fail to decode as a JSON object.
var ErrParse = errors.New("document: string-to-JSON parse failure or non-object root")
