package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineQuery(t *testing.T) {
	got := combineQuery("history of tea", []string{"Which region?", "Which era?"}, []string{"China", "Tang dynasty"})
	assert.Equal(t, "Initial Query: history of tea\nFollow-up Questions and Answers:\nQ: Which region?\nA: China\nQ: Which era?\nA: Tang dynasty", got)
}

func TestAskInt(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"\n", 4},
		{"6\n", 6},
		{"lots\n", 4},
		{"-2\n", 4},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got, err := askInt(bufio.NewReader(strings.NewReader(tt.input)), &out, "Enter research breadth", 4)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Enter research breadth (default 4): ", out.String())
		})
	}
}
