package handler

import (
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIANLI0/LayerCut/segment"
	"github.com/TIANLI0/LayerCut/service"
)

func formContext(values url.Values) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	return c
}

func TestParseRect(t *testing.T) {
	rect, err := parseRect(formContext(url.Values{}))
	require.NoError(t, err)
	assert.Nil(t, rect)

	rect, err = parseRect(formContext(url.Values{
		"xmin": {"10"}, "ymin": {"20"}, "xmax": {"110"}, "ymax": {"220"},
	}))
	require.NoError(t, err)
	require.NotNil(t, rect)
	assert.Equal(t, image.Rect(10, 20, 110, 220), *rect)
}

func TestParseRectErrors(t *testing.T) {
	cases := map[string]url.Values{
		"partial":  {"xmin": {"1"}, "ymin": {"2"}},
		"invalid":  {"xmin": {"a"}, "ymin": {"2"}, "xmax": {"3"}, "ymax": {"4"}},
		"inverted": {"xmin": {"5"}, "ymin": {"2"}, "xmax": {"3"}, "ymax": {"4"}},
		"flat":     {"xmin": {"1"}, "ymin": {"4"}, "xmax": {"3"}, "ymax": {"4"}},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseRect(formContext(values))
			assert.Error(t, err)
		})
	}
}

func TestProcessErrorStatus(t *testing.T) {
	status, _ := processErrorStatus(fmt.Errorf("wrapped: %w", service.ErrQueueFull))
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = processErrorStatus(fmt.Errorf("init: %w", errors.Wrap(segment.ErrEmptyClass, "foreground=0")))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = processErrorStatus(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
}
