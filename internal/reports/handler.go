package reports

import (
	"go.uber.org/zap"

	"github.com/bbabel1/property-manager-sub011/internal/escrow"
)

type Handler struct {
	Escrow *escrow.Service
	Log    *zap.Logger
}

func NewHandler(svc *escrow.Service, log *zap.Logger) *Handler {
	return &Handler{Escrow: svc, Log: log}
}
