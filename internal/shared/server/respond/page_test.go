package respond

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestPageParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query        string
		limit, offst int
	}{
		{"", 20, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=500", 100, 0},
		{"?limit=-1&offset=-4", 20, 0},
		{"?limit=abc", 20, 0},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/x"+tc.query, nil)
		limit, offset := PageParams(c, 20, 100)
		if limit != tc.limit || offset != tc.offst {
			t.Fatalf("%q: got limit=%d offset=%d", tc.query, limit, offset)
		}
	}
}

func TestNewPageNeverNil(t *testing.T) {
	page := NewPage[string](nil, 20, 0)
	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", page.Items)
	}
}
