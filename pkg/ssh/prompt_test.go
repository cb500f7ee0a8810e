package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstPromptHostname(t *testing.T) {
	for _, tc := range []struct {
		text string
		want string
		ok   bool
	}{
		{"HP-2920# ", "HP-2920", true},
		{"HP-2920> ", "HP-2920", true},
		{"\r\nlast login\nHP-2920(config)# ", "HP-2920", true},
		{"core.sw_1#", "core.sw_1", true},
		{"##########\n", "", false},
		{"Welcome to the lab\n##########", "", false},
		{"Authorized access only #", "", false},
		{"HP-2920# \nPress any key to continue\n", "", false},
		{"", "", false},
	} {
		got, ok := firstPromptHostname(tc.text)
		assert.Equal(t, tc.ok, ok, "%q", tc.text)
		assert.Equal(t, tc.want, got, "%q", tc.text)
	}
}
