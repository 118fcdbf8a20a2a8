package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/tickflowgo/internal/config"
	"github.com/vk/tickflowgo/internal/ctxlog"
	"github.com/vk/tickflowgo/internal/schema"
	"github.com/zclconf/go-cty/cty/convert"
)

// translateProfile converts the HCL-specific profile schema into the agnostic model.
func (l *Loader) translateProfile(ctx context.Context, s *schema.Profile) *config.Profile {
	logger := ctxlog.FromContext(ctx).With("flow_type", s.FlowType, "profile_name", s.Name)
	logger.Debug("Translating HCL profile to internal config model.")

	p := &config.Profile{
		FlowType: s.FlowType,
		Name:     s.Name,
		Settings: l.extractBodyAttributes(s.Settings),
	}
	if s.Timing != nil {
		p.Timing = &config.Timing{
			AwaitTimeoutMs: s.Timing.AwaitTimeoutMs,
			CooldownMs:     s.Timing.CooldownMs,
			IdleBackoffMs:  s.Timing.IdleBackoffMs,
		}
	}
	if s.Panel != nil {
		p.Panel = &config.PanelOptions{
			Title:    s.Panel.Title,
			Disabled: s.Panel.Disabled,
		}
	}
	return p
}

// translateFlowDefinition converts the HCL-specific flow manifest schema into
// the agnostic model.
func (l *Loader) translateFlowDefinition(ctx context.Context, s *schema.FlowDefinition) (*config.FlowDefinition, error) {
	f := &config.FlowDefinition{
		Type:        s.Type,
		Description: s.Description,
		Settings:    make(map[string]*config.SettingDefinition),
	}
	if s.Lifecycle != nil {
		f.Lifecycle = &config.Lifecycle{Plan: s.Lifecycle.Plan}
	}

	for _, in := range s.Settings {
		def, err := translateSettingDefinition(ctx, in, s.Type)
		if err != nil {
			return nil, err
		}
		f.Settings[in.Name] = def
	}
	return f, nil
}

// translateSettingDefinition parses a setting's declared type and, when a
// default is present, validates it against that type.
func translateSettingDefinition(ctx context.Context, in *schema.SettingDefinition, flowType string) (*config.SettingDefinition, error) {
	parsedType, err := typeExprToCtyType(ctx, in.Type)
	if err != nil {
		return nil, fmt.Errorf("in flow '%s', setting '%s': %w", flowType, in.Name, err)
	}

	def := &config.SettingDefinition{
		Name:        in.Name,
		Type:        parsedType,
		Description: in.Description,
		Transient:   in.Transient,
	}

	if in.Default != nil && !in.Default.IsNull() {
		val, err := convert.Convert(*in.Default, parsedType)
		if err != nil {
			return nil, fmt.Errorf("in flow '%s', setting '%s': default does not match declared type %s: %w",
				flowType, in.Name, parsedType.FriendlyName(), err)
		}
		def.Default = &val
		def.Optional = true // It's optional because a valid default exists.
	}
	return def, nil
}

func (l *Loader) extractBodyAttributes(block *schema.SettingsBlock) map[string]hcl.Expression {
	if block == nil || block.Body == nil {
		return nil
	}
	attrs, _ := block.Body.JustAttributes()
	if attrs == nil {
		return nil
	}
	exprMap := make(map[string]hcl.Expression)
	for name, attr := range attrs {
		exprMap[name] = attr.Expr
	}
	return exprMap
}
