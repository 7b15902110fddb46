package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
	"github.com/ajitpratap0/grantsync/pkg/models"
)

// policy parameterizes the create-or-update protocol for one entity kind.
type policy[E models.Entity] struct {
	kind models.Kind
	// lookup finds the stored counterpart of a candidate, "" if none.
	lookup func(ctx context.Context, candidate E) (models.Reference, error)
	// merge returns the entity to write back and whether a write is needed.
	merge func(candidate, stored E) (E, bool)
	// create reports whether an unmatched candidate may be created.
	create func(candidate E) bool
	// beforeUpdate adjusts a merged entity right before it is written.
	beforeUpdate func(merged E)
}

// reconcile creates or updates candidate in the STORE and returns its
// Reference, or "" when the candidate was skipped.
func reconcile[E models.Entity](ctx context.Context, e *Engine, st *runState, candidate E, p policy[E]) (models.Reference, error) {
	ctx, span := e.tracer.Start(ctx, "engine.reconcile", trace.WithAttributes(
		attribute.String("kind", string(p.kind)),
	))
	defer span.End()

	ref, action, err := reconcileEntity(ctx, e, candidate, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("action", string(action)))

	st.stats.record(p.kind, action)
	e.recorder.ObserveEntity(p.kind, action)
	logger.FromContext(ctx, e.logger).Debug("entity reconciled",
		zap.String("kind", string(p.kind)),
		zap.String("action", string(action)),
		zap.String("ref", string(ref)))
	return ref, nil
}

func reconcileEntity[E models.Entity](ctx context.Context, e *Engine, candidate E, p policy[E]) (models.Reference, Action, error) {
	ref, err := p.lookup(ctx, candidate)
	if err != nil {
		return "", "", storeFailure(err, "find", p.kind)
	}

	if ref == "" {
		if !p.create(candidate) {
			return "", ActionSkipped, nil
		}
		ref, err = e.store.CreateResource(ctx, candidate)
		if err != nil {
			return "", "", storeFailure(err, "create", p.kind)
		}
		candidate.SetRef(ref)
		return ref, ActionCreated, nil
	}

	entity, err := e.store.ReadResource(ctx, ref, p.kind)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeStoreInconsistency, "could not read "+string(p.kind)).
			WithDetail("ref", string(ref))
	}
	stored, ok := entity.(E)
	if !ok {
		return "", "", errors.Newf(errors.ErrorTypeStoreInconsistency, "could not read %s object with reference %s", p.kind, ref).
			WithDetail("ref", string(ref))
	}

	merged, changed := p.merge(candidate, stored)
	candidate.SetRef(ref)
	if !changed {
		return ref, ActionUnchanged, nil
	}
	merged.SetRef(ref)
	if p.beforeUpdate != nil {
		p.beforeUpdate(merged)
	}
	if err := e.store.UpdateResource(ctx, merged); err != nil {
		return "", "", storeFailure(err, "update", p.kind)
	}
	return ref, ActionUpdated, nil
}

// storeFailure marks a failed STORE call as StoreUnavailable unless the
// backend already classified it.
func storeFailure(err error, op string, kind models.Kind) error {
	if errors.IsType(err, errors.ErrorTypeStoreUnavailable) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeStoreUnavailable, op+" "+string(kind))
}

// reconcileFunder namespaces the funder's localKey and reconciles it. Funders
// unknown to the STORE are created only when they carry a name.
func (e *Engine) reconcileFunder(ctx context.Context, st *runState, f *models.Funder) (models.Reference, error) {
	f.LocalKey = models.NewIdentifier(e.deployment.Domain, models.IDTypeFunder, f.LocalKey).Serialize()
	return reconcile(ctx, e, st, f, policy[*models.Funder]{
		kind: models.KindFunder,
		lookup: func(ctx context.Context, c *models.Funder) (models.Reference, error) {
			return e.store.FindByAttribute(ctx, models.KindFunder, models.AttrLocalKey, c.LocalKey)
		},
		merge: func(c, s *models.Funder) (*models.Funder, bool) {
			m := e.deployment.Comparator.MergeFunder(c, s)
			return m, m != nil
		},
		create: (*models.Funder).HasName,
	})
}

// reconcileUser looks the user up by each locator id in order. In user mode
// unmatched users are left alone, and a user without locator ids is never
// created since no later run could find it again.
func (e *Engine) reconcileUser(ctx context.Context, st *runState, u *models.User) (models.Reference, error) {
	return reconcile(ctx, e, st, u, policy[*models.User]{
		kind: models.KindUser,
		lookup: func(ctx context.Context, c *models.User) (models.Reference, error) {
			for _, id := range c.LocatorIDs {
				if id == "" {
					continue
				}
				ref, err := e.store.FindByAttribute(ctx, models.KindUser, models.AttrLocatorIDs, id)
				if err != nil || ref != "" {
					return ref, err
				}
			}
			return "", nil
		},
		merge: func(c, s *models.User) (*models.User, bool) {
			m := e.deployment.Comparator.MergeUser(c, s)
			return m, m != nil
		},
		create: func(c *models.User) bool { return st.mode != ModeUser && locatable(c) },
		beforeUpdate: func(m *models.User) {
			m.AddRole(models.RoleSubmitter)
		},
	})
}

func locatable(u *models.User) bool {
	for _, id := range u.LocatorIDs {
		if id != "" {
			return true
		}
	}
	return false
}

// reconcileGrant namespaces the grant's localKey and reconciles it. Grants
// are always created when absent.
func (e *Engine) reconcileGrant(ctx context.Context, st *runState, g *models.Grant) (models.Reference, error) {
	g.LocalKey = models.NewIdentifier(e.deployment.Domain, models.IDTypeGrant, g.LocalKey).Serialize()
	return reconcile(ctx, e, st, g, policy[*models.Grant]{
		kind: models.KindGrant,
		lookup: func(ctx context.Context, c *models.Grant) (models.Reference, error) {
			return e.store.FindByAttribute(ctx, models.KindGrant, models.AttrLocalKey, c.LocalKey)
		},
		merge: func(c, s *models.Grant) (*models.Grant, bool) {
			m := e.deployment.Comparator.MergeGrant(c, s)
			return m, m != nil
		},
		create: func(*models.Grant) bool { return true },
	})
}
