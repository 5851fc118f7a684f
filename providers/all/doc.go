// Package all activates every bundled provider. Import it for its side
// effects:
//
//	import _ "github.com/pulseboard/pulse/providers/all"
//
// all.go is generated; add a provider package under providers/<domain>/
// and run go generate.
package all

//go:generate go run ../../internal/tools/genproviders -root .. -out all.go
