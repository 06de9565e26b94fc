package project

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/kiegroup/kie-cloud-tests/pkg/kube"
	"github.com/kiegroup/kie-cloud-tests/pkg/log"
)

func newClients(objs ...client.Object) *kube.Clients {
	return &kube.Clients{Client: fake.NewClientBuilder().WithScheme(kube.Scheme).WithObjects(objs...).Build()}
}

func TestName(t *testing.T) {
	assert.True(t, strings.HasPrefix(Name("nightly"), "nightly-"))
	assert.Len(t, strings.Split(Name(""), "-"), 2)
}

func TestCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	clients := newClients()

	p, err := Create(ctx, clients, "kie", log.NewTestLogger(t, "project"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Name, "kie-"))

	ns := &corev1.Namespace{}
	require.NoError(t, clients.Client.Get(ctx, client.ObjectKey{Name: p.Name}, ns))
	assert.Equal(t, "true", ns.Labels[ScenarioLabel])

	exists, err := p.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, p.DeleteAndWait(ctx, time.Second))

	exists, err = p.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	// deleting twice is fine
	assert.NoError(t, p.Delete(ctx))
}

func TestApplyManifest(t *testing.T) {
	ctx := context.Background()
	clients := newClients()
	p := Open(clients, "scenario", log.NewTestLogger(t, "project"))

	objs, err := p.ApplyManifest(ctx, []byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: settings\ndata:\n  a: b\n"))
	require.NoError(t, err)
	require.Len(t, objs, 1)

	cm := &corev1.ConfigMap{}
	require.NoError(t, clients.Client.Get(ctx, client.ObjectKey{Namespace: "scenario", Name: "settings"}, cm))
	assert.Equal(t, "b", cm.Data["a"])

	require.NoError(t, p.CreateSecret(ctx, "kie-app-secret", map[string]string{"KIE_ADMIN_PWD": "secret"}))
	assert.NoError(t, clients.Client.Get(ctx, client.ObjectKey{Namespace: "scenario", Name: "kie-app-secret"}, &corev1.Secret{}))
}

func TestEventsAreSortedByLastTimestamp(t *testing.T) {
	now := time.Now()
	event := func(name string, last time.Time) *corev1.Event {
		return &corev1.Event{
			ObjectMeta:    metav1.ObjectMeta{Name: name, Namespace: "scenario"},
			LastTimestamp: metav1.NewTime(last),
		}
	}
	clients := newClients(
		event("late", now),
		event("early", now.Add(-time.Hour)),
		event("middle", now.Add(-time.Minute)),
	)

	events, err := Open(clients, "scenario", log.Nop()).Events(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "early", events[0].Name)
	assert.Equal(t, "middle", events[1].Name)
	assert.Equal(t, "late", events[2].Name)
}
