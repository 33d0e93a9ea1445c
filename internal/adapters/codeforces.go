package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ZanzyTHEbar/judge-relay/internal/relay"
	"github.com/ZanzyTHEbar/judge-relay/internal/security"
	"github.com/gin-gonic/gin"
)

const CodeforcesError = "Failed to fetch from Codeforces"

// codeforcesEnvelope is the wrapper every Codeforces API response carries
type codeforcesEnvelope struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// Codeforces relays GET /api/codeforces/:handle to user.status
func Codeforces(endpoint string) relay.Upstream {
	return relay.Upstream{
		Name:   "codeforces",
		Method: http.MethodGet,
		Target: func(c *gin.Context) (string, error) {
			return codeforcesURL(endpoint, c.Param("handle"))
		},
		ErrorMessage: CodeforcesError,
		Check:        checkCodeforcesStatus,
	}
}

func codeforcesURL(endpoint, handle string) (string, error) {
	if err := security.ValidateHandle(handle); err != nil {
		return "", err
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid codeforces endpoint: %w", err)
	}
	q := u.Query()
	q.Set("handle", handle)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// checkCodeforcesStatus fails any body whose status is not "OK"
func checkCodeforcesStatus(body []byte) (string, bool) {
	var env codeforcesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "unexpected response shape", false
	}
	if env.Status == "OK" {
		return "", true
	}
	if env.Comment == "" {
		return "Codeforces API error", false
	}
	return env.Comment, false
}
