// Copyright 2025 Open E-Line Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flow

import (
	"fmt"
	"strconv"

	"github.com/open-eline/eline/pkg/private/serrors"
)

// CookiePrefix identifies flows installed by this application. It occupies
// the top byte of the cookie; the circuit identifier fills the lower 56
// bits.
const CookiePrefix = 0xaa

const cookieIDMask = uint64(1)<<56 - 1

// CookieMaskAll matches the full cookie in delete requests.
const CookieMaskAll = ^uint64(0)

// EncodeCookie returns the flow cookie for a circuit identifier.
func EncodeCookie(circuitID string) (uint64, error) {
	id, err := strconv.ParseUint(circuitID, 16, 64)
	if err != nil {
		return 0, serrors.Wrap("parsing circuit id", err, "evc_id", circuitID)
	}
	if id&^cookieIDMask != 0 {
		return 0, serrors.New("circuit id does not fit in a cookie", "evc_id", circuitID)
	}
	return uint64(CookiePrefix)<<56 | id, nil
}

// DecodeCookie returns the circuit identifier encoded in a cookie.
// DecodeCookie is the exact inverse of EncodeCookie for all valid
// identifiers.
func DecodeCookie(cookie uint64) string {
	return fmt.Sprintf("%014x", cookie&cookieIDMask)
}
