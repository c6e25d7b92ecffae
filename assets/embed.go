package assets

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"
)

//go:embed symbols.txt sql/*.sql
var FS embed.FS

// Migrations exposes the embedded sql/ directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		panic(err) // embedded path is fixed at build time
	}
	return sub
}

// ReadLines returns the non-blank, non-comment lines of f.
func ReadLines(f fs.File) ([]string, error) {
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// SymbolsList returns the built-in symbol alphabet.
func SymbolsList() ([]string, error) {
	f, err := FS.Open("symbols.txt")
	if err != nil {
		return nil, err
	}
	return ReadLines(f)
}
