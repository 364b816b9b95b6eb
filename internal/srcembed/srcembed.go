// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package srcembed embeds the text of a source file, such as an OpenCL kernel,
// into a C string constant declared in a header file.
package srcembed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Default declaration whose initializer receives the source text
const DefaultPlaceholder = "static const char *cl_string;"

var ErrPlaceholderMissing = errors.New("placeholder not found")

// Converts source text into a sequence of C string literals, one per input line.
// Each literal keeps its line terminator as \n. Backslashes and double quotes are escaped
func Literal(src string) string {
	var sb strings.Builder
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSuffix(line, "\r")
		line = strings.ReplaceAll(line, `\`, `\\`)
		line = strings.ReplaceAll(line, `"`, `\"`)
		sb.WriteString(`"`)
		sb.WriteString(line)
		sb.WriteString(`\n"`)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Returns the pattern matching the placeholder declaration with or without a previous initializer
func placeholderPattern(placeholder string) (*regexp.Regexp, error) {
	decl := strings.TrimSuffix(placeholder, ";")
	if decl == placeholder || strings.TrimSpace(decl) == "" {
		return nil, fmt.Errorf("placeholder %q must be a declaration ending in ';'", placeholder)
	}
	return regexp.Compile(regexp.QuoteMeta(decl) + `\s*=?(\s*".*"\s*)*;`)
}

// Replaces every occurrence of the placeholder declaration in dest, including any initializer
// from a previous run, by the declaration initialized with the given literal.
// Returns ErrPlaceholderMissing if dest contains no occurrence
func Substitute(dest, literal, placeholder string) (string, error) {
	re, err := placeholderPattern(placeholder)
	if err != nil {
		return "", err
	}
	if !re.MatchString(dest) {
		return "", fmt.Errorf("%w: %q", ErrPlaceholderMissing, placeholder)
	}
	decl := strings.TrimSuffix(placeholder, ";")
	return re.ReplaceAllLiteralString(dest, decl+" = "+literal+";"), nil
}

// Reads the source file, and writes its text into the placeholder of the destination file.
// The destination is left untouched if the placeholder is missing
func PrepareFile(src, dest, placeholder string) error {
	srcBytes, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return err
	}
	destBytes, err := os.ReadFile(filepath.Clean(dest))
	if err != nil {
		return err
	}
	out, err := Substitute(string(destBytes), Literal(string(srcBytes)), placeholder)
	if err != nil {
		return fmt.Errorf("%s: %w", dest, err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(out), info.Mode().Perm())
}
