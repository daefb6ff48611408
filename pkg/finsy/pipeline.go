package finsy

import (
	"context"
	"fmt"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/finsy-network/finsy/pkg/p4client"
	"github.com/finsy-network/finsy/pkg/p4schema"
)

// checkPipeline reconciles the configured pipeline with the device.
// The primary installs; a backup adopts what the device is running and
// warns when it differs from its own configuration.
func (sw *Switch) checkPipeline(ctx context.Context, primary bool) error {
	schema := sw.Schema()

	if !schema.Exists() {
		// No pipeline configured: adopt the device's.
		return sw.adoptDevicePipeline(ctx)
	}

	deviceCookie, hasPipeline, err := sw.deviceCookie(ctx)
	if err != nil {
		return err
	}

	if hasPipeline && deviceCookie == schema.Cookie() && !sw.options.P4Force {
		sw.log.Debugf("pipeline %s already installed (cookie %#x)", schema.Name(), deviceCookie)
		sw.emit(Event{Kind: EventPipelineReady, Switch: sw})
		return nil
	}

	if !primary {
		if hasPipeline {
			sw.log.Warnf("backup: device pipeline cookie %#x differs from configured %#x",
				deviceCookie, schema.Cookie())
		}
		return sw.adoptDevicePipeline(ctx)
	}

	action := p4v1.SetForwardingPipelineConfigRequest_VERIFY_AND_COMMIT
	if hasPipeline && !sw.options.P4Force {
		action = p4v1.SetForwardingPipelineConfigRequest_RECONCILE_AND_COMMIT
	}

	req := &p4v1.SetForwardingPipelineConfigRequest{
		DeviceId:   sw.options.DeviceID,
		Role:       sw.options.RoleName,
		ElectionId: sw.arb.currentElectionID().Proto(),
		Action:     action,
		Config:     schema.ForwardingPipelineConfig(),
	}
	if err := sw.client.SetForwardingPipelineConfig(ctx, req); err != nil {
		return fmt.Errorf("install pipeline %s: %w", schema.Name(), err)
	}
	sw.log.Infof("pipeline %s installed (cookie %#x)", schema.Name(), schema.Cookie())
	sw.log.Debug(schema.Description())
	sw.emit(Event{Kind: EventPipelineReady, Switch: sw})
	return nil
}

// deviceCookie fetches the cookie of the pipeline the device is
// running. hasPipeline is false when none is installed.
func (sw *Switch) deviceCookie(ctx context.Context) (cookie uint64, hasPipeline bool, err error) {
	resp, err := sw.client.GetForwardingPipelineConfig(ctx, &p4v1.GetForwardingPipelineConfigRequest{
		DeviceId:     sw.options.DeviceID,
		ResponseType: p4v1.GetForwardingPipelineConfigRequest_COOKIE_ONLY,
	})
	if err != nil {
		if p4client.IsNoPipelineConfigured(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get pipeline cookie: %w", err)
	}
	cfg := resp.GetConfig()
	if cfg == nil {
		return 0, false, nil
	}
	return cfg.GetCookie().GetCookie(), true, nil
}

// adoptDevicePipeline replaces the switch's schema with the one the
// device reports.
func (sw *Switch) adoptDevicePipeline(ctx context.Context) error {
	resp, err := sw.client.GetForwardingPipelineConfig(ctx, &p4v1.GetForwardingPipelineConfigRequest{
		DeviceId:     sw.options.DeviceID,
		ResponseType: p4v1.GetForwardingPipelineConfigRequest_P4INFO_AND_COOKIE,
	})
	if err != nil {
		if p4client.IsNoPipelineConfigured(err) {
			sw.log.Debug("device has no pipeline installed")
			return nil
		}
		return fmt.Errorf("get device pipeline: %w", err)
	}
	p4info := resp.GetConfig().GetP4Info()
	if p4info == nil {
		sw.log.Debug("device has no pipeline installed")
		return nil
	}

	schema, err := p4schema.New(p4info, nil)
	if err != nil {
		return fmt.Errorf("device pipeline: %w", err)
	}
	sw.mu.Lock()
	sw.schema = schema
	sw.mu.Unlock()
	sw.log.Infof("adopted device pipeline %s", schema.Name())
	sw.emit(Event{Kind: EventPipelineReady, Switch: sw})
	return nil
}
