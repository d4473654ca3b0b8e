// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fmt_test

import (
	"testing"

	simfmt "github.com/gx-org/simjit/base/fmt"
)

func TestIndent(t *testing.T) {
	tests := []struct {
		txt  string
		want string
	}{
		{
			txt:  "",
			want: "",
		},
		{
			txt:  "coords: [0 2]",
			want: "\tcoords: [0 2]",
		},
		{
			txt:  "coords: [0 2]\n\nsinks : [1]\n",
			want: "\tcoords: [0 2]\n\n\tsinks : [1]\n",
		},
	}
	for i, test := range tests {
		if got := simfmt.Indent(test.txt); got != test.want {
			t.Errorf("test %d: got %q but want %q", i, got, test.want)
		}
	}
}
