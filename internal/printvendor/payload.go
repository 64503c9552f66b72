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

package printvendor

import "strings"

const (
	ProductPaperback = "photobook_pb_s210_s_fc"
	ProductHardcover = "photobook_cw_s210_s_fc"
)

var countryCodes = map[string]string{
	"India":          "IN",
	"United States":  "US",
	"United Kingdom": "GB",
}

// CountryCode maps a country name to its ISO code. Unknown names pass through.
func CountryCode(country string) string {
	if code, ok := countryCodes[country]; ok {
		return code
	}
	return country
}

// SplitFullName treats the last word as the last name.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

// Product returns the item reference and product code for a book style.
// Anything that is not a paperback is printed as a hardcover.
func Product(bookStyle string) (reference, code string) {
	if bookStyle == "paperback" {
		return "Paperback", ProductPaperback
	}
	return "Hardcover", ProductHardcover
}
