/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package normalize turns external identifiers into comparable keys.
package normalize

import "strings"

const nbsp = "\u00a0"

// ID returns s with surrounding whitespace and non-breaking spaces removed,
// lower-cased when caseInsensitive is set. It never fails.
func ID(s string, caseInsensitive bool) string {
	s = strings.ReplaceAll(s, nbsp, " ")
	s = strings.TrimSpace(s)
	if caseInsensitive {
		s = strings.ToLower(s)
	}
	return s
}
