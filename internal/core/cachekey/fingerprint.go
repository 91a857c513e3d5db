package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"reflect"
	"runtime"
)

const fingerprintLen = 12

// Fingerprint returns a short hash tied to the implementation of fn, used to
// suffix cache versions so editing the code automatically invalidates stale
// entries. The hash covers the whole source file containing the function,
// not the function body alone: editing any sibling function in the file also
// rolls the fingerprint, which only over-invalidates and costs a refetch.
// When the source is unavailable (stripped binaries, deployed artifacts) it
// falls back to hashing the qualified function name.
func Fingerprint(fn any) string {
	if file := sourceFile(fn); file != "" {
		if src, err := os.ReadFile(file); err == nil {
			return shortHash(src)
		}
	}
	return shortHash([]byte(FuncName(fn)))
}

func sourceFile(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	file, _ := f.FileLine(v.Pointer())
	return file
}

func shortHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
