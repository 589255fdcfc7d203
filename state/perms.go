// This file is part of ttff-sub001.
//
// ttff-sub001 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ttff-sub001 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ttff-sub001.  If not, see <https://www.gnu.org/licenses/>.

package state

import "strings"

// Perms is the read/write/execute permission mask carried by a mapped
// memory region, sourced from the platform description's `perms` field
// (spec §6 Platform description: "{name, base, size, perms}").
type Perms uint8

const (
	PermRead Perms = 1 << iota
	PermWrite
	PermExecute
)

// ParsePerms accepts the conventional "rwx"/"r-x"/"rw-" style string, where
// a '-' (or any character other than 'r'/'w'/'x') in a position means that
// permission is absent. An empty string grants no permissions.
func ParsePerms(s string) Perms {
	var p Perms
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			p |= PermRead
		case 'w':
			p |= PermWrite
		case 'x':
			p |= PermExecute
		}
	}
	return p
}

func (p Perms) Read() bool    { return p&PermRead != 0 }
func (p Perms) Write() bool   { return p&PermWrite != 0 }
func (p Perms) Execute() bool { return p&PermExecute != 0 }

func (p Perms) String() string {
	r, w, x := "-", "-", "-"
	if p.Read() {
		r = "r"
	}
	if p.Write() {
		w = "w"
	}
	if p.Execute() {
		x = "x"
	}
	return r + w + x
}
