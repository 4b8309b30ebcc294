package server

import (
	"github.com/gin-gonic/gin"

	"trade-sim/src/helpers"
)

// -----------------------------------------------------------------------------
// Feed control plane
// -----------------------------------------------------------------------------

func (s *Server) getSources(c *gin.Context) {
	type sourceInfo struct {
		Name    string   `json:"name"`
		Symbols []string `json:"symbols"`
	}

	var out []sourceInfo
	for _, src := range s.Sources.GetAllSources() {
		out = append(out, sourceInfo{Name: src.Name(), Symbols: src.Symbols()})
	}
	respondOK(c, out)
}

// -----------------------------------------------------------------------------

func (s *Server) postStartSource(c *gin.Context) {
	name := c.Param("name")
	if err := s.Sources.StartSource(name); err != nil {
		respondError(c, helpers.NewValidationError("%v", err))
		return
	}
	s.Logger.Info("Source %s started via admin API", name)
	respondOK(c, nil)
}

// -----------------------------------------------------------------------------

func (s *Server) postStopSource(c *gin.Context) {
	name := c.Param("name")
	if err := s.Sources.StopSource(name); err != nil {
		respondError(c, helpers.NewValidationError("%v", err))
		return
	}
	s.Logger.Info("Source %s stopped via admin API", name)
	respondOK(c, nil)
}

// -----------------------------------------------------------------------------

// postUpdateSourceSymbols replaces a source's symbol list and persists the
// change to the config file so it survives restarts.
func (s *Server) postUpdateSourceSymbols(c *gin.Context) {
	name := c.Param("name")

	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, helpers.NewValidationError("invalid request body: %v", err))
		return
	}

	known := make(map[string]bool)
	for _, t := range s.Market.Tickers() {
		known[t] = true
	}
	for _, sym := range req.Symbols {
		if !known[sym] {
			respondError(c, helpers.NewValidationError("unknown ticker %q", sym))
			return
		}
	}

	src, err := s.Sources.GetSource(name)
	if err != nil {
		respondError(c, helpers.NewValidationError("%v", err))
		return
	}
	if err := src.UpdateSymbols(req.Symbols); err != nil {
		respondError(c, err)
		return
	}

	for i := range s.Config.Feed.Sources {
		if s.Config.Feed.Sources[i].Name == name {
			s.Config.Feed.Sources[i].Symbols = req.Symbols
		}
	}
	if err := s.Config.Save(s.ConfigPath); err != nil {
		s.Logger.Error("Failed to persist config after symbol update: %v", err)
	}

	s.Logger.Info("Source %s symbols updated via admin API: %v", name, req.Symbols)
	respondOK(c, nil)
}
