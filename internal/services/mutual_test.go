package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMutuals(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name       string
		candidates []uuid.UUID
		reference  []uuid.UUID
		want       []uuid.UUID
	}{
		{"keeps candidate order", []uuid.UUID{c, a, b}, []uuid.UUID{a, c}, []uuid.UUID{c, a}},
		{"drops duplicates", []uuid.UUID{a, a, b}, []uuid.UUID{a}, []uuid.UUID{a}},
		{"empty reference", []uuid.UUID{a, b}, nil, []uuid.UUID{}},
		{"empty candidates", nil, []uuid.UUID{a}, []uuid.UUID{}},
		{"disjoint", []uuid.UUID{a, b}, []uuid.UUID{c, d}, []uuid.UUID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mutuals(tt.candidates, tt.reference)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}
