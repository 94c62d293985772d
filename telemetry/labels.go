package telemetry

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"

	"github.com/itsneelabh/lambdametrics/core"
)

// Label names attached to every exported series.
const (
	LabelAccountID     = "account_id"
	LabelAssertsEnv    = "asserts_env"
	LabelAssertsSite   = "asserts_site"
	LabelAssertsSource = "asserts_source"
	LabelAssertsTenant = "asserts_tenant"
	LabelFunctionName  = "function_name"
	LabelInstance      = "instance"
	LabelJob           = "job"
	LabelLayerVersion  = "layer_version"
	LabelNamespace     = "namespace"
	LabelRegion        = "region"
	LabelRuntime       = "runtime"
	LabelTenant        = "tenant"
	LabelVersion       = "version"
)

// InstanceLabels is the label set identifying one running function instance.
//
// The static part is fixed when the instance starts. Function name and version
// are filled in by the first invocation when the runtime did not export them;
// job always mirrors the function name. Each identity field is written at most
// once, so a later invocation cannot relabel series that were already pushed.
type InstanceLabels struct {
	mu sync.RWMutex

	static       map[string]string
	functionName string
	version      string
	tenant       string
}

// NewInstanceLabels builds the label set from configuration.
// layerVersion is the version of this library reported as layer_version.
func NewInstanceLabels(cfg *core.Config, layerVersion string) *InstanceLabels {
	l := &InstanceLabels{
		static: map[string]string{
			LabelRegion:        cfg.Function.Region,
			LabelInstance:      instanceID(),
			LabelNamespace:     cfg.Labels.Namespace,
			LabelAssertsSource: cfg.Labels.Source,
			LabelRuntime:       "go",
			LabelLayerVersion:  layerVersion,
			LabelAccountID:     cfg.Function.AccountID,
			LabelAssertsSite:   cfg.Labels.Site,
			LabelAssertsEnv:    cfg.Labels.Environment,
		},
		functionName: cfg.Function.Name,
		version:      cfg.Function.Version,
		tenant:       cfg.RemoteWrite.TenantName,
	}
	return l
}

// instanceID returns hostname:pid, or a random id when the host name
// cannot be read.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = uuid.NewString()
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// SetFunctionIdentity fills in function name and version. Fields that are
// already set are left alone; empty arguments are ignored.
// It reports whether anything changed.
func (l *InstanceLabels) SetFunctionIdentity(name, version string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	if l.functionName == "" && name != "" {
		l.functionName = name
		changed = true
	}
	if l.version == "" && version != "" {
		l.version = version
		changed = true
	}
	return changed
}

// ClearFunctionIdentity resets name and version. Only tests use it.
func (l *InstanceLabels) ClearFunctionIdentity() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.functionName = ""
	l.version = ""
}

// IdentityKnown reports whether both function name and version are set.
func (l *InstanceLabels) IdentityKnown() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.functionName != "" && l.version != ""
}

// FunctionName returns the current function name, possibly empty.
func (l *InstanceLabels) FunctionName() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.functionName
}

// SetTenant sets both tenant and asserts_tenant.
func (l *InstanceLabels) SetTenant(tenant string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tenant = tenant
}

// Snapshot returns the non-empty labels as a fresh map.
func (l *InstanceLabels) Snapshot() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]string, len(l.static)+5)
	for k, v := range l.static {
		if v != "" {
			out[k] = v
		}
	}
	if l.functionName != "" {
		out[LabelFunctionName] = l.functionName
		out[LabelJob] = l.functionName
	}
	if l.version != "" {
		out[LabelVersion] = l.version
	}
	if l.tenant != "" {
		out[LabelTenant] = l.tenant
		out[LabelAssertsTenant] = l.tenant
	}
	return out
}

// pairs returns the snapshot as sorted protobuf label pairs.
func (l *InstanceLabels) pairs() []*dto.LabelPair {
	snap := l.Snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]*dto.LabelPair, 0, len(names))
	for _, k := range names {
		out = append(out, &dto.LabelPair{Name: proto.String(k), Value: proto.String(snap[k])})
	}
	return out
}

// mergeLabels adds extra to existing, keeping labels already on the series
// and returning the result sorted by name.
func mergeLabels(existing, extra []*dto.LabelPair) []*dto.LabelPair {
	seen := make(map[string]struct{}, len(existing))
	for _, lp := range existing {
		seen[lp.GetName()] = struct{}{}
	}

	out := make([]*dto.LabelPair, 0, len(existing)+len(extra))
	out = append(out, existing...)
	for _, lp := range extra {
		if _, ok := seen[lp.GetName()]; ok {
			continue
		}
		out = append(out, lp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}
