package telemetry

import (
	"fmt"
	"os"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"google.golang.org/protobuf/proto"

	"github.com/itsneelabh/lambdametrics/core"
)

func TestInstanceID(t *testing.T) {
	id := instanceID()
	suffix := fmt.Sprintf(":%d", os.Getpid())
	assert.True(t, strings.HasSuffix(id, suffix), id)
	assert.Greater(t, len(id), len(suffix))

	if host, err := os.Hostname(); err == nil && host != "" {
		assert.Equal(t, host+suffix, id)
	}
}

func TestInstanceLabelsSnapshot(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Function.Region = "eu-west-1"
	cfg.RemoteWrite.TenantName = "acme"

	l := NewInstanceLabels(cfg, "1.2.3")
	snap := l.Snapshot()

	assert.Equal(t, "eu-west-1", snap[LabelRegion])
	assert.Equal(t, "AWS/Lambda", snap[LabelNamespace])
	assert.Equal(t, "client_golang", snap[LabelAssertsSource])
	assert.Equal(t, "go", snap[LabelRuntime])
	assert.Equal(t, "1.2.3", snap[LabelLayerVersion])
	assert.Equal(t, "acme", snap[LabelTenant])
	assert.Equal(t, "acme", snap[LabelAssertsTenant])
	assert.NotContains(t, snap, LabelFunctionName)
	assert.NotContains(t, snap, LabelJob)
	assert.NotContains(t, snap, LabelAccountID)

	// the snapshot is a copy
	snap[LabelRegion] = "changed"
	assert.Equal(t, "eu-west-1", l.Snapshot()[LabelRegion])
}

func TestInstanceLabelsSetFunctionIdentity(t *testing.T) {
	l := NewInstanceLabels(core.DefaultConfig(), "")

	assert.False(t, l.IdentityKnown())
	assert.True(t, l.SetFunctionIdentity("orders", ""))
	assert.False(t, l.IdentityKnown())
	assert.False(t, l.SetFunctionIdentity("billing", ""))
	assert.True(t, l.SetFunctionIdentity("billing", "7"))
	assert.True(t, l.IdentityKnown())
	assert.False(t, l.SetFunctionIdentity("billing", "8"))

	assert.Equal(t, "orders", l.FunctionName())
	assert.Equal(t, "7", l.Snapshot()[LabelVersion])
}

func TestInstanceLabelsPairsSorted(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Function.Name = "orders"
	cfg.Function.Version = "1"
	l := NewInstanceLabels(cfg, "x")

	pairs := l.pairs()
	for i := 1; i < len(pairs); i++ {
		assert.Less(t, pairs[i-1].GetName(), pairs[i].GetName())
	}
}

func TestMergeLabels(t *testing.T) {
	existing := []*dto.LabelPair{
		{Name: proto.String("region"), Value: proto.String("custom")},
		{Name: proto.String("code"), Value: proto.String("200")},
	}
	extra := []*dto.LabelPair{
		{Name: proto.String("job"), Value: proto.String("orders")},
		{Name: proto.String("region"), Value: proto.String("us-east-1")},
	}

	got := mergeLabels(existing, extra)

	var names, values []string
	for _, lp := range got {
		names = append(names, lp.GetName())
		values = append(values, lp.GetValue())
	}
	assert.Equal(t, []string{"code", "job", "region"}, names)
	assert.Equal(t, []string{"200", "orders", "custom"}, values)
}
