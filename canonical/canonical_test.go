package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Data []byte `json:"data"`
}

func TestMarshal(t *testing.T) {
	tests := []struct {
		in  interface{}
		out string
	}{
		{nil, `null`},
		{true, `true`},
		{1000, `1000`},
		{"a<b>&c", `"a<b>&c"`},
		{[]int{3, 1, 2}, `[3,1,2]`},
		{map[string]interface{}{"b": 1, "a": []string{"x"}}, `{"a":["x"],"b":1}`},
		{item{ID: "1", Data: []byte("hi")}, `{"data":"aGk=","id":"1"}`},
		{map[string]int{"é": 1, "z": 2}, `{"z":2,"é":1}`},
		{1.5, `1.5`},
		{
			struct {
				Z int               `json:"z"`
				A map[string]string `json:"a"`
			}{Z: 1, A: map[string]string{"y": "2", "x": "1"}},
			`{"a":{"x":"1","y":"2"},"z":1}`,
		},
	}

	for _, tt := range tests {
		got, err := Marshal(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.out, string(got))
	}
}

func TestMarshal_IndependentOfFieldOrder(t *testing.T) {
	type ab struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	type ba struct {
		B string `json:"b"`
		A string `json:"a"`
	}

	x, err := Marshal(ab{A: "1", B: "2"})
	require.NoError(t, err)
	y, err := Marshal(ba{B: "2", A: "1"})
	require.NoError(t, err)
	assert.Equal(t, x, y)
}

func TestMarshal_Error(t *testing.T) {
	_, err := Marshal(make(chan int))
	assert.Error(t, err)
}
