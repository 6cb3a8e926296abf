package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/akolanti/docchat/internal/adapter/utils"
	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/handlers"
)

const traceHeader = "X-Trace-Id"

func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	if req == nil {
		//this is a bad request
		re.badRequest.httpCode = http.StatusBadRequest
		re.badRequest.errorMessage = "request is empty"
		re.badRequest.isBadRequest = true
		return re
	}
	trace := req.Header.Get(traceHeader)
	if trace == "" {
		trace = utils.GetNewUUID()
	}
	re.logger = re.logger.With("traceId", trace)
	re.writer.Header().Set(traceHeader, trace)
	re.req = req.WithContext(config.WithTraceID(req.Context(), trace))
	return re
}

// identify attaches the caller's user id. No Authorization header means an
// anonymous caller; a token that resolves to nobody is rejected.
func (c *Chain) identify(re requestResponseStruct) requestResponseStruct {
	authHeader := re.req.Header.Get("Authorization")
	if authHeader == "" {
		return re
	}

	token, ok := bearerToken(authHeader)
	if ok {
		if c.isOperatorToken(token) {
			re.logger.Debug("Operator token")
			re.req = re.req.WithContext(config.WithUserID(re.req.Context(), 0))
			return re
		}
		if c.sessions != nil {
			if userID, found := c.sessions.Resolve(re.req.Context(), token); found {
				re.logger.Debug("Authorized", "userId", userID)
				re.req = re.req.WithContext(config.WithUserID(re.req.Context(), userID))
				return re
			}
		}
	}

	if c.noAuthBypass {
		re.logger.Error("--------------------------------------- auth bypass----------------------------------------------")
		return re
	}
	re.badRequest = failureStruct{
		isBadRequest: true,
		httpCode:     http.StatusUnauthorized,
		errorMessage: "Unauthorized",
	}
	return re
}

func (c *Chain) isOperatorToken(token string) bool {
	return c.authToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(c.authToken)) == 1
}

func bearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func (c *Chain) rateLimiter(re requestResponseStruct) requestResponseStruct {
	if c.limiter == nil {
		return re
	}
	ip, _, err := net.SplitHostPort(re.req.RemoteAddr)
	if err != nil {
		ip = re.req.RemoteAddr
	}

	if !c.limiter.Allow(ip) {
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusTooManyRequests,
			errorMessage: "Rate limit exceeded",
		}
	}
	return re
}

func handleBadRequest(re requestResponseStruct) {
	traceID := ""
	remote := ""
	if re.req != nil {
		traceID = config.TraceID(re.req.Context())
		remote = re.req.RemoteAddr
	}
	re.logger.Warn("Bad request", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "IP", remote)
	handlers.WriteErrorResponse(re.writer, re.badRequest.httpCode, traceID, re.badRequest.errorMessage)
}
