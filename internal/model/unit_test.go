package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitIDPrefix(t *testing.T) {
	tests := []struct {
		importPath string
		want       string
	}{
		{"example.com/App", "example.com_app"},
		{"example.com/app_test", "example.com_app_test"},
		{"example.com/a:b", "example.com_a_b"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, UnitIDPrefix(tt.importPath), tt.importPath)
	}
}

func TestTypeUnitID_KeepsTypeNameCase(t *testing.T) {
	prefix := UnitIDPrefix("example.com/App")

	assert.Equal(t, "example.com_app.Point", TypeUnitID(prefix, "Point"))
	assert.NotEqual(t, TypeUnitID(prefix, "Point"), TypeUnitID(prefix, "point"))
	assert.Equal(t, "example.com_app.<point.go>", FileUnitID(prefix, "point.go"))
}
