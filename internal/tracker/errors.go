package tracker

import (
	"errors"
	"fmt"

	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
)

// Validation rejections. None of them mutate the record.
var (
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidTier        = errors.New("invalid goal tier")
	ErrWeekend            = errors.New("registration not allowed on weekends")
	ErrInvalidPoints      = errors.New("points must be a positive number")
	ErrBelowMinimum       = errors.New("points below minimum")
	ErrAboveMaximum       = errors.New("points above maximum")
	ErrAlreadyRegistered  = errors.New("points already registered today")
	ErrExcludedDay        = errors.New("today is a scheduled day off")
	ErrNoEntry            = errors.New("no entry to correct")
	ErrNotLatestEntry     = errors.New("only the latest entry can be corrected")
	ErrCorrectionExpired  = errors.New("correction window closed")
	ErrCorrectionRange    = errors.New("corrected value out of range")
	ErrSameValue          = errors.New("corrected value equals current value")
	ErrGoalOutOfRange     = errors.New("goal value out of range")
	ErrSickLeaveTooLong   = errors.New("sick leave range too long")
	ErrSickLeaveRange     = errors.New("sick leave ends before it starts")
	ErrInvalidPointsValue = errors.New("point value must be positive")
)

var messages = map[error]string{
	ErrInvalidName: fmt.Sprintf("❌ Nome inválido. Use de %d a %d letras, sem repetir a mesma letra três vezes seguidas.",
		models.MinNameLength, models.MaxNameLength),
	ErrInvalidTier:        "❌ Meta inválida. Escolha 300, 400, 500 ou 600.",
	ErrWeekend:            "🚫 Não é possível registrar pontos no fim de semana.",
	ErrInvalidPoints:      "❌ Informe um número de pontos válido.",
	ErrBelowMinimum:       fmt.Sprintf("❌ O valor mínimo é %d pontos.", models.MinDailyPoints),
	ErrAboveMaximum:       fmt.Sprintf("❌ O valor máximo é %d pontos.", models.MaxDailyPoints),
	ErrAlreadyRegistered:  "⚠️ Você já registrou pontos hoje. Use /corrigir para ajustar o valor.",
	ErrExcludedDay:        "🚫 Hoje está agendado como folga. Remova o agendamento antes de registrar.",
	ErrNoEntry:            "ℹ️ Nenhum registro para corrigir.",
	ErrNotLatestEntry:     "❌ Só é possível corrigir o registro mais recente.",
	ErrCorrectionExpired:  "⏰ A correção só é permitida no mesmo dia do registro.",
	ErrCorrectionRange:    fmt.Sprintf("❌ A correção deve ficar entre %d e %d pontos.", models.MinCorrectionPoints, models.MaxCorrectionPoints),
	ErrSameValue:          "ℹ️ O valor informado é igual ao atual.",
	ErrGoalOutOfRange:     fmt.Sprintf("❌ Cada meta deve ficar entre %d e %d pontos.", models.MinGoalValue, models.MaxGoalValue),
	ErrSickLeaveTooLong:   fmt.Sprintf("❌ Um atestado pode cobrir no máximo %d dias.", MaxSickLeaveDays),
	ErrSickLeaveRange:     "❌ A data final do atestado é anterior à data inicial.",
	ErrInvalidPointsValue: "❌ O valor do ponto deve ser positivo.",
}

// Message returns the user-facing text for a validation error, or "" when
// err is not one of this package's rejections.
func Message(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return ""
}
