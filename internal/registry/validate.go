package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/tickflowgo/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateRegistry performs a strict parity check between manifests and Go code.
// It checks both the presence of settings and the compatibility of their types.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for flowType, def := range r.DefinitionRegistry {
		if def.Lifecycle == nil || def.Lifecycle.Plan == "" {
			errs = append(errs, fmt.Sprintf("flow '%s': manifest has no lifecycle plan", flowType))
			continue
		}
		handler, ok := r.PlanRegistry[def.Lifecycle.Plan]
		if !ok {
			errs = append(errs, fmt.Sprintf("flow '%s': manifest references plan '%s' which is not registered", flowType, def.Lifecycle.Plan))
			continue
		}

		if handler.SettingsType == nil {
			if len(def.Settings) > 0 {
				errs = append(errs, fmt.Sprintf("flow '%s': manifest declares settings, but Go plan has no settings struct", flowType))
			}
			continue
		}

		hclSettings := make(map[string]struct{})
		for name := range def.Settings {
			hclSettings[name] = struct{}{}
		}

		goSettings := make(map[string]reflect.StructField)
		settingsType := handler.SettingsType
		for i := 0; i < settingsType.NumField(); i++ {
			field := settingsType.Field(i)
			if !field.IsExported() {
				continue
			}
			tag := field.Tag.Get("tfgo")
			tagName := strings.Split(tag, ",")[0]
			if tagName != "" && tagName != "-" {
				goSettings[tagName] = field
			}
		}

		// Check for presence mismatches
		for name := range goSettings {
			if _, ok := hclSettings[name]; !ok {
				errs = append(errs, fmt.Sprintf("flow '%s': Go struct has field for setting '%s' which is not declared in manifest", flowType, name))
			}
		}
		for name := range hclSettings {
			if _, ok := goSettings[name]; !ok {
				errs = append(errs, fmt.Sprintf("flow '%s': manifest declares setting '%s' which is not found in Go struct", flowType, name))
			}
		}

		// Check for type mismatches
		for name, settingDef := range def.Settings {
			goField, ok := goSettings[name]
			if !ok {
				continue // Already handled by presence check
			}

			manifestType := settingDef.Type
			if manifestType.Equals(cty.DynamicPseudoType) {
				logger.Warn("Manifest declares a setting with 'type = any', which disables static type checking. Consider using a specific type like 'string', 'number', or 'bool'.", "flow", flowType, "setting", name)
				continue
			}

			goFieldType, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface())
			if err != nil {
				errs = append(errs, fmt.Sprintf("flow '%s', setting '%s': could not imply cty type from Go field type %s: %v", flowType, name, goField.Type, err))
				continue
			}

			if !manifestType.Equals(goFieldType) {
				errs = append(errs, fmt.Sprintf("flow '%s', setting '%s': type mismatch. Manifest requires '%s' but Go struct field '%s' provides type '%s'",
					flowType, name, manifestType.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}
