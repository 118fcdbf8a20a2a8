package app

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vk/tickflowgo/internal/blobstore"
	"github.com/vk/tickflowgo/internal/config"
	"github.com/vk/tickflowgo/internal/ctxlog"
	"github.com/vk/tickflowgo/internal/engine"
	"github.com/vk/tickflowgo/internal/flow"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/panel"
)

// Run executes the main application logic: build one unit per configured
// profile and hand them to the cooperative engine loop.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.appConfig.HealthcheckPort)
	}

	units, err := a.buildUnits(ctx)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		a.logger.Warn("No profiles matched, nothing to run.", "flow_filter", a.appConfig.Flow)
		return nil
	}

	a.logger.Info("🚀 Starting cooperative loop.", "units", len(units))
	a.engine = engine.New(a.gw, a.store, engine.Options{
		TickInterval: time.Duration(a.appConfig.TickIntervalMs) * time.Millisecond,
	}, units...)

	if err := a.engine.Run(ctx); err != nil {
		return fmt.Errorf("engine run failed: %w", err)
	}
	a.logger.Info("🏁 Run finished.")
	return nil
}

// buildUnits assembles a flow instance, settings blob, and panel controller
// for every profile in the model, honoring the launch identity's flow filter.
func (a *App) buildUnits(ctx context.Context) ([]*engine.Unit, error) {
	logger := ctxlog.FromContext(ctx)
	var units []*engine.Unit

	for _, profile := range a.config.Profiles {
		if a.appConfig.Flow != "" && profile.FlowType != a.appConfig.Flow {
			logger.Debug("Skipping profile outside the selected flow.", "profile", profile.Key())
			continue
		}

		def, ok := a.registry.DefinitionRegistry[profile.FlowType]
		if !ok {
			return nil, fmt.Errorf("profile %q references unknown flow type %q", profile.Key(), profile.FlowType)
		}
		handler, ok := a.registry.PlanRegistry[def.Lifecycle.Plan]
		if !ok {
			return nil, fmt.Errorf("flow %q references unregistered plan %q", def.Type, def.Lifecycle.Plan)
		}

		// Decode the profile's settings onto the module's struct. This also
		// enforces required settings and fills manifest defaults.
		settings := handler.NewSettings()
		if err := a.converter.DecodeSettings(ctx, settings, profile.Settings, def.Settings, nil); err != nil {
			return nil, fmt.Errorf("profile %q: %w", profile.Key(), err)
		}

		defaults := blobFromSettings(settings, def)
		blob := a.store.Load(ctx, profile.Key(), defaults)

		plan := handler.NewPlan(settings)
		inst := flow.New(profile.Key(), plan, a.gw, blob, flowOptions(profile))
		inst.Start()

		unit := &engine.Unit{
			Name: profile.Key(),
			Key:  profile.Key(),
			Flow: inst,
			Blob: blob,
		}
		if profile.Panel == nil || !profile.Panel.Disabled {
			title := profile.Name
			if profile.Panel != nil && profile.Panel.Title != "" {
				title = profile.Panel.Title
			}
			unit.Panel = panel.NewController(a.gw, panelRenderer(title, inst, blob, def))
		}

		logger.Debug("Unit assembled.", "profile", profile.Key(), "panel", unit.Panel != nil)
		units = append(units, unit)
	}
	return units, nil
}

// flowOptions maps a profile's timing overrides onto flow options. Zero
// values fall through to the flow defaults.
func flowOptions(profile *config.Profile) flow.Options {
	var opts flow.Options
	if profile.Timing == nil {
		return opts
	}
	opts.AwaitTimeout = time.Duration(profile.Timing.AwaitTimeoutMs) * time.Millisecond
	opts.Cooldown = time.Duration(profile.Timing.CooldownMs) * time.Millisecond
	opts.IdleBackoff = time.Duration(profile.Timing.IdleBackoffMs) * time.Millisecond
	return opts
}

// blobFromSettings seeds a defaults blob from the decoded settings struct,
// carrying the manifest's transient markers over. The result is clean so only
// real edits dirty it later.
func blobFromSettings(settings any, def *config.FlowDefinition) *blobstore.Blob {
	blob := blobstore.New(schemaVersion)

	v := reflect.ValueOf(settings).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("tfgo"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		sd, declared := def.Settings[tag]
		if !declared {
			continue
		}

		switch field.Type.Kind() {
		case reflect.Bool:
			blob.Set(tag, v.Field(i).Bool())
		case reflect.Float32, reflect.Float64:
			blob.Set(tag, v.Field(i).Float())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			blob.Set(tag, float64(v.Field(i).Int()))
		case reflect.String:
			blob.Set(tag, v.Field(i).String())
		default:
			continue
		}
		if sd.Transient {
			blob.MarkTransient(tag)
		}
	}

	blob.ClearDirty()
	return blob
}

// panelRenderer builds the panel layout for one unit: the run toggle, the
// live flow state, and one row per declared setting. Boolean settings render
// as editable checkboxes, everything else as read-only labels.
func panelRenderer(title string, inst *flow.Instance, blob *blobstore.Blob, def *config.FlowDefinition) panel.Renderer {
	names := make([]string, 0, len(def.Settings))
	for name := range def.Settings {
		names = append(names, name)
	}
	sort.Strings(names)

	return func() gateway.Layout {
		controls := []gateway.Control{
			{Kind: gateway.ControlCheckbox, Name: "running", Label: "Running", Value: strconv.FormatBool(inst.Running())},
			{Kind: gateway.ControlLabel, Name: "status", Label: "Status", Value: inst.State().String()},
		}
		for _, name := range names {
			raw, ok := blob.Get(name)
			if !ok {
				continue
			}
			ctl := gateway.Control{Name: name, Label: name}
			switch v := raw.(type) {
			case bool:
				ctl.Kind = gateway.ControlCheckbox
				ctl.Value = strconv.FormatBool(v)
			case float64:
				ctl.Kind = gateway.ControlLabel
				ctl.Value = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				ctl.Kind = gateway.ControlLabel
				ctl.Value = fmt.Sprintf("%v", v)
			}
			controls = append(controls, ctl)
		}
		return gateway.Layout{Title: title, Controls: controls}
	}
}
