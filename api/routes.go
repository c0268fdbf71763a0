package api

import (
	"encoding/hex"
	"errors"
	"net/http"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	wheeltypes "github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

const maxListLimit = 500

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)

		cluster := v1.Group("/cluster")
		{
			cluster.GET("", s.handleGetCluster)
			cluster.GET("/history", s.handleGetClusterHistory)
		}

		definitions := v1.Group("/definitions")
		{
			definitions.GET("", s.handleListDefinitions)
			definitions.GET("/:name", s.handleGetDefinition)
		}

		computations := v1.Group("/computations")
		{
			computations.GET("", s.handleListComputations)
			computations.GET("/:offset", s.handleGetComputation)
		}

		v1.GET("/spins/:offset", s.handleGetSpin)
		v1.GET("/players/:player/spins", s.handleGetPlayerSpins)
		v1.GET("/circuit-breaker", s.handleGetCircuitBreaker)
		v1.GET("/audit", s.handleGetAudit)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	id := s.app.LastCommitID()
	c.JSON(http.StatusOK, StatusResponse{
		ChainID: s.app.ChainID(),
		Height:  id.Version,
		AppHash: hex.EncodeToString(id.Hash),
	})
}

func (s *Server) handleGetCluster(c *gin.Context) {
	var resp ClusterResponse
	err := s.app.Query(func(ctx sdk.Context) error {
		cfg, err := s.app.MXEKeeper.GetClusterConfig(ctx)
		resp = newClusterResponse(cfg)
		return err
	})
	s.respond(c, resp, err)
}

func (s *Server) handleGetClusterHistory(c *gin.Context) {
	resp := []ClusterResponse{}
	err := s.app.Query(func(ctx sdk.Context) error {
		history, err := s.app.MXEKeeper.ClusterHistory(ctx)
		for _, cfg := range history {
			resp = append(resp, newClusterResponse(cfg))
		}
		return err
	})
	s.respond(c, resp, err)
}

func (s *Server) handleListDefinitions(c *gin.Context) {
	resp := []DefinitionResponse{}
	err := s.app.Query(func(ctx sdk.Context) error {
		return s.app.MXEKeeper.IterateDefinitions(ctx, func(def mxetypes.ComputationDefinition) (bool, error) {
			resp = append(resp, newDefinitionResponse(def))
			return false, nil
		})
	})
	s.respond(c, resp, err)
}

func (s *Server) handleGetDefinition(c *gin.Context) {
	var resp DefinitionResponse
	err := s.app.Query(func(ctx sdk.Context) error {
		def, err := s.app.MXEKeeper.GetDefinitionByName(ctx, c.Param("name"))
		resp = newDefinitionResponse(def)
		return err
	})
	s.respond(c, resp, err)
}

// handleListComputations lists requests of one status, or every pending
// request when no status is given.
func (s *Server) handleListComputations(c *gin.Context) {
	limit, err := cast.ToIntE(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > maxListLimit {
		s.badRequest(c, "limit must be between 1 and 500")
		return
	}

	var (
		status   mxetypes.RequestStatus
		requests []mxetypes.ComputationRequest
	)
	if name := c.Query("status"); name != "" {
		if status, err = mxetypes.ParseRequestStatus(name); err != nil {
			s.badRequest(c, err.Error())
			return
		}
	}
	err = s.app.Query(func(ctx sdk.Context) error {
		var err error
		if status == 0 {
			requests, err = s.app.MXEKeeper.PendingRequests(ctx)
		} else {
			requests, err = s.app.MXEKeeper.RequestsByStatus(ctx, status, limit)
		}
		return err
	})
	if err != nil {
		s.respond(c, nil, err)
		return
	}

	total := len(requests)
	if len(requests) > limit {
		requests = requests[:limit]
	}
	if requests == nil {
		requests = []mxetypes.ComputationRequest{}
	}
	c.JSON(http.StatusOK, ComputationsResponse{Computations: requests, Total: total})
}

func (s *Server) handleGetComputation(c *gin.Context) {
	offset, ok := s.offsetParam(c)
	if !ok {
		return
	}

	var resp ComputationResponse
	err := s.app.Query(func(ctx sdk.Context) error {
		req, err := s.app.MXEKeeper.GetRequest(ctx, offset)
		if err != nil {
			return err
		}
		resp.Request = req
		event, found, err := s.app.MXEKeeper.GetCallbackEvent(ctx, offset)
		if found {
			resp.Callback = &event
		}
		return err
	})
	s.respond(c, resp, err)
}

func (s *Server) handleGetSpin(c *gin.Context) {
	offset, ok := s.offsetParam(c)
	if !ok {
		return
	}

	var resp wheeltypes.SpinRecord
	err := s.app.Query(func(ctx sdk.Context) error {
		var err error
		resp, err = s.app.WheelKeeper.GetSpin(ctx, offset)
		return err
	})
	s.respond(c, resp, err)
}

func (s *Server) handleGetPlayerSpins(c *gin.Context) {
	var resp []wheeltypes.SpinRecord
	err := s.app.Query(func(ctx sdk.Context) error {
		var err error
		resp, err = s.app.WheelKeeper.SpinsByPlayer(ctx, c.Param("player"))
		return err
	})
	if resp == nil {
		resp = []wheeltypes.SpinRecord{}
	}
	s.respond(c, resp, err)
}

func (s *Server) handleGetCircuitBreaker(c *gin.Context) {
	var resp interface{}
	err := s.app.Query(func(ctx sdk.Context) error {
		resp = s.app.MXEKeeper.GetCircuitBreakerState(ctx)
		return nil
	})
	s.respond(c, resp, err)
}

func (s *Server) handleGetAudit(c *gin.Context) {
	from, err := cast.ToInt64E(c.DefaultQuery("from", "0"))
	if err != nil {
		s.badRequest(c, "from must be a block height")
		return
	}
	to, err := cast.ToInt64E(c.DefaultQuery("to", cast.ToString(s.app.LastBlockHeight())))
	if err != nil || to < from {
		s.badRequest(c, "to must be a block height not below from")
		return
	}
	limit, err := cast.ToIntE(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > maxListLimit {
		s.badRequest(c, "limit must be between 1 and 500")
		return
	}

	var resp AuditResponse
	err = s.app.Query(func(ctx sdk.Context) error {
		resp.Entries, err = s.app.MXEKeeper.QueryAuditTrail(ctx, from, to, limit)
		return err
	})
	s.respond(c, resp, err)
}

func (s *Server) offsetParam(c *gin.Context) (uint64, bool) {
	offset, err := cast.ToUint64E(c.Param("offset"))
	if err != nil {
		s.badRequest(c, "offset must be an unsigned integer")
		return 0, false
	}
	return offset, true
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "BAD_REQUEST"})
}

// respond writes body, or maps err onto a status code.
func (s *Server) respond(c *gin.Context, body interface{}, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, body)
	case errors.Is(err, mxetypes.ErrRequestNotFound),
		errors.Is(err, mxetypes.ErrUnregisteredDefinition),
		errors.Is(err, mxetypes.ErrClusterNotSet),
		errors.Is(err, wheeltypes.ErrSpinNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	default:
		s.logger.Error("query failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"})
	}
}
