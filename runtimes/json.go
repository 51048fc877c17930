package runtimes

import "encoding/json"

type _json struct{}

var JSON _json

// Copy round-trips src through JSON into dst, e.g. a parsed argument map
// into a config struct.
func (_json) Copy(dst, src interface{}) (e error) {
	buf, e := json.Marshal(src)
	if e != nil {
		return
	}
	return json.Unmarshal(buf, dst)
}
