package gameservices

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"

	"gameservices/core"
	"gameservices/errs"
)

// ParseAchievementAward validates award parameters. Recognised keys are identifier (required string),
// percent_complete (number in 0..100, default 100) and show_banner (bool, default false).
func ParseAchievementAward(params core.Dictionary) (core.AchievementReport, *errs.E) {
	const op = "award_achievement"
	report := core.AchievementReport{PercentComplete: 100}

	raw, ok := params["identifier"]
	if !ok || raw == nil {
		return report, errs.New(op, errs.CodeInvalid, errs.WithMessage("identifier is required"))
	}
	id, ok := raw.(string)
	if !ok {
		return report, errs.New(op, errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("identifier must be a string, got %T", raw)))
	}
	id = strings.TrimSpace(id)
	if err := core.ValidateIdentifier(id); err != nil {
		return report, errs.New(op, errs.CodeInvalid, errs.WithMessage("identifier: "+err.Error()), errs.WithCause(err))
	}
	report.ID = id

	if raw, ok := params["percent_complete"]; ok && raw != nil {
		pct, ok := toFloat(raw)
		if !ok {
			return report, errs.New(op, errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("percent_complete must be a number, got %T", raw)))
		}
		if math.IsNaN(pct) || pct < 0 || pct > 100 {
			return report, errs.New(op, errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("percent_complete must be within 0..100, got %v", pct)))
		}
		report.PercentComplete = pct
	}

	if raw, ok := params["show_banner"]; ok && raw != nil {
		banner, ok := raw.(bool)
		if !ok {
			return report, errs.New(op, errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("show_banner must be a bool, got %T", raw)))
		}
		report.ShowBanner = banner
	}
	return report, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// AwardAchievement validates params synchronously, then reports progress and emits achievement_awarded.
func (s *Service) AwardAchievement(params core.Dictionary) *errs.E {
	const op = "award_achievement"
	s.metrics.Operation(op)
	report, verr := ParseAchievementAward(params)
	if verr != nil {
		s.logger.Debug("rejected achievement award", "error", verr.Text())
		return verr
	}
	emit := func(err error) {
		s.emit(core.EventAchievementAwarded, s.outcome(op, err, core.Dictionary{
			"identifier":       report.ID,
			"percent_complete": report.PercentComplete,
			"show_banner":      report.ShowBanner,
		}))
	}
	if err := s.ready(op); err != nil {
		s.post(func() { emit(err) })
		return nil
	}
	s.platform.ReportAchievements([]core.AchievementReport{report}, func(err error) {
		s.post(func() { emit(err) })
	})
	return nil
}

// RequestAchievementDescriptions emits achievement_descriptions_loaded.
func (s *Service) RequestAchievementDescriptions() {
	const op = "request_achievement_descriptions"
	s.metrics.Operation(op)
	emit := func(ds []core.AchievementDescription, err error) {
		s.emit(core.EventAchievementDescriptionsLoaded, s.outcome(op, err, core.Dictionary{
			"descriptions": lo.Map(ds, func(d core.AchievementDescription, _ int) core.Dictionary {
				return core.AchievementDescriptionDict(d)
			}),
		}))
	}
	if err := s.ready(op); err != nil {
		s.post(func() { emit(nil, err) })
		return
	}
	s.platform.LoadAchievementDescriptions(func(ds []core.AchievementDescription, err error) {
		s.post(func() { emit(ds, err) })
	})
}

// RequestAchievements emits achievements_loaded with the local player's progress.
func (s *Service) RequestAchievements() {
	const op = "request_achievements"
	s.metrics.Operation(op)
	emit := func(as []core.Achievement, err error) {
		s.emit(core.EventAchievementsLoaded, s.outcome(op, err, core.Dictionary{
			"achievements": lo.Map(as, func(a core.Achievement, _ int) core.Dictionary {
				return core.AchievementDict(a)
			}),
		}))
	}
	if err := s.ready(op); err != nil {
		s.post(func() { emit(nil, err) })
		return
	}
	s.platform.LoadAchievements(func(as []core.Achievement, err error) {
		s.post(func() { emit(as, err) })
	})
}

// ResetAchievements clears the local player's progress and emits achievements_reset.
func (s *Service) ResetAchievements() {
	const op = "reset_achievements"
	s.metrics.Operation(op)
	emit := func(err error) {
		s.emit(core.EventAchievementsReset, s.outcome(op, err, core.Dictionary{}))
	}
	if err := s.ready(op); err != nil {
		s.post(func() { emit(err) })
		return
	}
	s.platform.ResetAchievements(func(err error) {
		s.post(func() { emit(err) })
	})
}
