package v1

import (
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
)

type V1 struct {
	intake usecase.IntakeUseCase
	logger logger.Interface
}
