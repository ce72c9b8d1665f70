package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/plan"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const maxAppsPerUser = 5

var (
	ErrAppNotFound     = errors.New("app not found")
	ErrAppNameTaken    = errors.New("an app with this name already exists")
	ErrAppLimitReached = fmt.Errorf("you have reached the maximum number of apps allowed (%d)", maxAppsPerUser)
)

// Apps manages tenant lifecycle: registration, plan switching and the
// cascade when a tenant is removed.
type Apps struct {
	DB    *gorm.DB
	Store ObjectStore
}

func NewApps(db *gorm.DB, store ObjectStore) *Apps {
	return &Apps{DB: db, Store: store}
}

// Create registers a new app on the Trial plan with zeroed usage.
func (a *Apps) Create(userID, name, description string) (*model.App, error) {
	var count int64

	err := a.DB.
		Model(model.App{}).
		Where("user_id = ?", userID).
		Count(&count).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to count apps, %w", err)
	}

	if count >= maxAppsPerUser {
		return nil, ErrAppLimitReached
	}

	var existing int64

	err = a.DB.
		Model(model.App{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&existing).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to check app name, %w", err)
	}

	if existing > 0 {
		return nil, ErrAppNameTaken
	}

	limits := plan.LimitsFor(plan.Trial)

	app := &model.App{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Plan: model.Plan{
			PlanType:   plan.Trial,
			Active:     false,
			Paid:       false,
			StorageCap: limits.StorageCapKB,
			UploadCap:  limits.UploadCapPerMonth,
		},
		Metrics: model.StorageMetrics{
			LastCalculated: time.Now(),
		},
		CreatedAt: time.Now().Unix(),
	}

	if err := a.DB.Create(app).Error; err != nil {
		return nil, fmt.Errorf("failed to create app, %w", err)
	}

	return app, nil
}

// ByName resolves an app scoped to its owner. Someone else's app name
// reads as ErrAppNotFound.
func (a *Apps) ByName(userID, name string) (*model.App, error) {
	var app model.App

	err := a.DB.
		Where("user_id = ? AND name = ?", userID, name).
		First(&app).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppNotFound
		}

		return nil, fmt.Errorf("failed to look up app, %w", err)
	}

	return &app, nil
}

// SwitchPlan moves the app to another tier and resets the denormalized
// cap fields from the plan policy table.
func (a *Apps) SwitchPlan(app *model.App, planType string) error {
	limits := plan.LimitsFor(planType)

	app.Plan = model.Plan{
		PlanType:   planType,
		Active:     true,
		Paid:       planType != plan.Trial,
		StorageCap: limits.StorageCapKB,
		UploadCap:  limits.UploadCapPerMonth,
	}

	err := a.DB.
		Model(model.App{}).
		Where("id = ?", app.ID).
		Updates(map[string]any{
			"plan_plan_type":   app.Plan.PlanType,
			"plan_active":      app.Plan.Active,
			"plan_paid":        app.Plan.Paid,
			"plan_storage_cap": app.Plan.StorageCap,
			"plan_upload_cap":  app.Plan.UploadCap,
		}).
		Error
	if err != nil {
		return fmt.Errorf("failed to switch plan, %w", err)
	}

	return nil
}

// Delete removes the app and everything it owns: stored objects first,
// then file rows, API keys and the app row itself. Object deletions
// that fail are logged and skipped so one bad key can't wedge the
// cascade, the remaining rows still go away.
func (a *Apps) Delete(ctx context.Context, app *model.App) error {
	var files []model.File

	err := a.DB.
		Where("app_id = ?", app.ID).
		Find(&files).
		Error
	if err != nil {
		return fmt.Errorf("failed to list app files, %w", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(defaultWorkers)

	for _, f := range files {
		g.Go(func() error {
			if err := a.Store.Delete(ctx, f.FileKey); err != nil {
				zap.L().Error("Failed to delete object during app cascade",
					zap.String("appID", app.ID),
					zap.String("key", f.FileKey),
					zap.Error(err))
			}

			return nil
		})
	}

	g.Wait()

	return a.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("app_id = ?", app.ID).Delete(model.File{}).Error; err != nil {
			return err
		}

		if err := tx.Where("app_id = ?", app.ID).Delete(model.APIKey{}).Error; err != nil {
			return err
		}

		return tx.Delete(model.App{}, "id = ?", app.ID).Error
	})
}
