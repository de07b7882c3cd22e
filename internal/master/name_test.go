package master

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"株式会社テスト商事", "テスト商事"},
		{"テスト商事株式会社", "テスト商事"},
		{"（株）テスト商事", "テスト商事"},
		{"(株)テスト商事", "テスト商事"},
		{"㈱テスト商事", "テスト商事"},
		{"有限会社 山田製作所", "山田製作所"},
		{"ＡＣＭＥ　Ｃｏｒｐ", "acme"}, // full-width Latin
		{"Acme Corporation", "acme"},
		{"ACME CORP", "acme"},
		{"Acme Corp.", "acme"},
		{"Acme, Inc.", "acme"},
		{"Acme Co., Ltd.", "acmeco."}, // only the trailing suffix is stripped
		{"Yamada K.K.", "yamada"},
		{"  Spaced   Out  ", "spacedout"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}
