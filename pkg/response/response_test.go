package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestFailKeepsHTTP200(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, CodeQuotaExceeded, "campaign quota exceeded")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, CodeQuotaExceeded, body["code"])
	assert.Equal(t, "campaign quota exceeded", body["message"])
	assert.NotContains(t, body, "data")
}

func TestPaged(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Paged(c, []string{"a", "b"}, 7, 2, 2)

	body := decode(t, w)
	assert.EqualValues(t, CodeSuccess, body["code"])
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 7, data["total"])
	assert.EqualValues(t, 2, data["page"])
	assert.EqualValues(t, 2, data["page_size"])
	assert.Len(t, data["list"], 2)
}

func TestForbiddenAborts(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Forbidden(c, "admin only")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, c.IsAborted())
	assert.EqualValues(t, CodeForbidden, decode(t, w)["code"])
}
