package relayserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"heartx/internal/domain"
	"heartx/internal/relay"
)

// maxBody caps request bodies; a full slot set with returns is a few KiB.
const maxBody = 256 << 10

func (s *Server) bind(c *gin.Context, out any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	if err := c.ShouldBindJSON(out); err != nil {
		s.fail(c, errors.Wrap(errBadRequest, err.Error()))
		return false
	}
	return true
}

func (s *Server) putKeys(c *gin.Context) {
	var reg domain.Registration
	if !s.bind(c, &reg) {
		return
	}
	if err := s.state.PutKeys(caller(c), reg); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getKeys(c *gin.Context) {
	reg, err := s.state.Keys(caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (s *Server) getDirectory(c *gin.Context) {
	c.JSON(http.StatusOK, s.state.Directory())
}

func (s *Server) getSlots(c *gin.Context) {
	set, err := s.state.Slots(caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (s *Server) putSlots(c *gin.Context) {
	var sub domain.SlotSetSubmission
	if !s.bind(c, &sub) {
		return
	}
	set, err := s.state.SubmitSlots(caller(c), sub)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.submits.Inc()
	c.JSON(http.StatusOK, set)
}

func (s *Server) getInbox(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.fail(c, errors.Wrap(errBadRequest, "since: want RFC3339"))
			return
		}
		since = t
	}
	c.JSON(http.StatusOK, s.state.Inbox(caller(c), since))
}

func (s *Server) postClaim(c *gin.Context) {
	var req domain.ClaimRequest
	if !s.bind(c, &req) {
		return
	}
	claimed, err := s.state.Claim(caller(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.claims.Inc()
	c.JSON(http.StatusOK, claimed)
}

func (s *Server) getClaims(c *gin.Context) {
	claims := s.state.Claims(caller(c))
	if claims == nil {
		claims = []domain.ClaimedHeart{}
	}
	c.JSON(http.StatusOK, claims)
}

func (s *Server) postReturns(c *gin.Context) {
	var body relay.ReturnsBody
	if !s.bind(c, &body) {
		return
	}
	if err := s.state.AddReturns(caller(c), body.Entries); err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.returns.Inc()
	c.Status(http.StatusNoContent)
}

func (s *Server) getReturns(c *gin.Context) {
	c.JSON(http.StatusOK, s.state.Returns(caller(c)))
}

func (s *Server) postMatch(c *gin.Context) {
	var req domain.VerifyRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.state.Verify(caller(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !res.AlreadyMatched {
		s.metrics.matches.Inc()
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getMatches(c *gin.Context) {
	matches := s.state.Matches(caller(c))
	if matches == nil {
		matches = []domain.MatchRecord{}
	}
	c.JSON(http.StatusOK, matches)
}

func (s *Server) putRecovery(c *gin.Context) {
	var body relay.CapsuleBody
	if !s.bind(c, &body) {
		return
	}
	if err := s.state.PutCapsule(caller(c), body.Capsule); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getRecovery(c *gin.Context) {
	capsule, err := s.state.Capsule(caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, relay.CapsuleBody{Capsule: capsule})
}

func (s *Server) deleteState(c *gin.Context) {
	s.state.Reset(caller(c))
	c.Status(http.StatusNoContent)
}
