/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2022 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseString parses a duration string in the same "d"-extended notation
// String produces: an optional leading day count ("5d23h15m13s") followed by
// anything time.ParseDuration already understands. None of
// time.ParseDuration's own unit suffixes contain the letter "d", so the
// first "d" in the string unambiguously marks the end of the day count.
func parseString(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	s = strings.Replace(s, "\"", "", -1)
	s = strings.Replace(s, "'", "", -1)
	s = strings.Replace(s, " ", "", -1)
	s = strings.TrimSpace(s)

	rest := s
	neg := false
	if strings.HasPrefix(rest, "-") {
		neg = true
		rest = rest[1:]
	} else if strings.HasPrefix(rest, "+") {
		rest = rest[1:]
	}

	var days int64
	if idx := strings.IndexByte(rest, 'd'); idx >= 0 {
		n, e := strconv.ParseInt(rest[:idx], 10, 64)
		if e != nil {
			return 0, fmt.Errorf("duration: invalid day component %q: %w", rest[:idx], e)
		}
		days = n
		rest = rest[idx+1:]
	}

	var sub time.Duration
	if rest != "" {
		v, e := time.ParseDuration(rest)
		if e != nil {
			return 0, e
		}
		sub = v
	} else if days == 0 {
		return 0, fmt.Errorf("duration: empty duration string")
	}

	total := time.Duration(days)*24*time.Hour + sub
	if neg {
		total = -total
	}
	return Duration(total), nil
}

func (d *Duration) parseString(s string) error {
	if v, e := parseString(s); e != nil {
		return e
	} else {
		*d = v
		return nil
	}
}

func (d *Duration) unmarshall(val []byte) error {
	if tmp, err := ParseByte(val); err != nil {
		return err
	} else {
		*d = tmp
		return nil
	}
}
