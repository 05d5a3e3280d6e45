package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func ctxFor(target string) echo.Context {
	e := echo.New()
	return e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(ctxFor("/"))
	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("expected %d/0, got %d/%d", DefaultLimit, p.Limit, p.Offset)
	}
}

func TestWithDefault(t *testing.T) {
	tests := []struct {
		target        string
		def           int
		limit, offset int
	}{
		{"/", 10, 10, 0},
		{"/?limit=5&offset=15", 10, 5, 15},
		{"/?limit=0", 10, 10, 0},
		{"/?limit=abc&offset=-3", 20, 20, 0},
		{"/?limit=500", 10, MaxLimit, 0},
	}
	for _, tt := range tests {
		p := WithDefault(ctxFor(tt.target), tt.def)
		if p.Limit != tt.limit || p.Offset != tt.offset {
			t.Errorf("%s: expected %d/%d, got %d/%d", tt.target, tt.limit, tt.offset, p.Limit, p.Offset)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a", "b"}, 45, 20, 20)
	if !r.HasMore {
		t.Error("expected has_more when offset+limit < total")
	}
	r = NewResponse([]string{"a"}, 41, 20, 40)
	if r.HasMore {
		t.Error("expected no more results on last page")
	}
}
