package plan

import (
	"github.com/flanksource/commons/logger"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mdmkit/assignsync/intent"
	"github.com/mdmkit/assignsync/models"
	"github.com/mdmkit/assignsync/session"
)

// Build derives the operation plan from the session's pending
// mutations:
//
//   - one plain delete per assignment marked for deletion
//   - one tagged delete plus one recreation per assignment with a
//     pending intent update or filter override
//   - one creation per (pending assignment x application)
//
// Validation failures during planning keep their operation in the plan
// with Err set, so they are reported against the right phase instead of
// aborting the rest of the plan.
func Build(s *session.Session) Plan {
	var p Plan

	apps := s.Applications()
	appIndex := lo.KeyBy(apps, func(a models.Application) string { return a.ID })

	for _, key := range s.Deletions() {
		a, ok := s.Assignment(key)
		if !ok {
			continue
		}
		p.Deletes = append(p.Deletes, DeleteOp{
			Key:       key,
			AppName:   appIndex[key.AppID].DisplayName,
			GroupName: a.Target.DisplayName(),
			Target:    a.Target,
		})
	}

	updates := s.Updates()
	overrides := s.Overrides()

	editedKeys := lo.Uniq(append(lo.Keys(updates), lo.Keys(overrides)...))
	for _, key := range editedKeys {
		a, ok := s.Assignment(key)
		if !ok {
			continue
		}

		app := appIndex[key.AppID]
		newIntent := s.EffectiveIntent(a)
		newFilter := s.EffectiveFilter(a)

		op := CreateOp{
			LocalID:    uuid.NewString(),
			AppID:      key.AppID,
			AppName:    app.DisplayName,
			GroupName:  a.Target.DisplayName(),
			Target:     a.Target,
			Filter:     newFilter,
			Recreation: true,
			DeleteKey:  key,
		}

		resolved, substituted, err := intent.Suggest(app.Category, a.Target.Kind, newIntent)
		if err != nil {
			op.Err = err.Error()
		} else {
			if substituted {
				logger.WithValues("app", app.DisplayName, "group", op.GroupName).
					Infof("intent %s is not valid for this combination, substituting %s", newIntent, resolved)
			}
			op.Intent = resolved
		}

		p.Deletes = append(p.Deletes, DeleteOp{
			Key:           key,
			AppName:       app.DisplayName,
			GroupName:     a.Target.DisplayName(),
			Target:        a.Target,
			RecreateAfter: true,
			NewIntent:     op.Intent,
			NewFilter:     newFilter,
		})
		p.Creates = append(p.Creates, op)
	}

	categories := lo.Uniq(lo.Map(apps, func(a models.Application, _ int) models.AppCategory { return a.Category }))
	for _, pending := range s.Pending() {
		target := pending.Group.Target()

		resolved, substituted, err := intent.SuggestForAll(categories, target.Kind, pending.Intent)
		if err == nil && substituted {
			logger.WithValues("group", pending.Group.DisplayName).
				Infof("intent %s is not valid for every application, substituting %s", pending.Intent, resolved)
		}

		for _, app := range apps {
			op := CreateOp{
				LocalID:   uuid.NewString(),
				AppID:     app.ID,
				AppName:   app.DisplayName,
				GroupName: target.DisplayName(),
				Target:    target,
				Filter:    pending.Filter.Normalized(),
			}
			if err != nil {
				op.Err = err.Error()
			} else {
				op.Intent = resolved
			}
			p.Creates = append(p.Creates, op)
		}
	}

	logger.Debugf("planned %d delete(s) and %d create(s) across %d application(s)",
		len(p.Deletes), len(p.Creates), len(apps))
	return p
}
