package http

import (
	"github.com/dukerupert/imgbed"
	"github.com/labstack/echo/v4"
)

// InfoRequest is the request for upload metadata.
type InfoRequest struct {
	Reference string `param:"reference" validate:"required,max=512,reference"`
}

func (s *Server) handleInfo(c echo.Context) error {
	var req InfoRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if s.metadataService == nil {
		return imgbed.NotFound("Metadata not found")
	}

	ctx, cancel := withTimeout(c, s.MetadataTimeout)
	defer cancel()

	rec, err := s.metadataService.FindMetadata(ctx, imgbed.Reference(req.Reference))
	if err != nil {
		return err
	}

	return RespondOK(c, rec)
}
