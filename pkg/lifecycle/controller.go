package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
)

// ServerTemplatesPath is the controller endpoint listing registered server templates.
const ServerTemplatesPath = "/rest/controller/management/servers"

// ServerTemplate is a Kie Server registration known to a controller.
type ServerTemplate struct {
	ID   string `json:"server-id"`
	Name string `json:"server-name"`
}

type serverTemplateList struct {
	Templates []ServerTemplate `json:"server-template"`
}

// ControllerClient queries the controller embedded in a workbench or running standalone.
type ControllerClient interface {
	ServerTemplates(ctx context.Context, controller deployment.Deployment) ([]ServerTemplate, error)
}

// RESTControllerClient talks to the controller REST API.
type RESTControllerClient struct {
	http *retryablehttp.Client
}

// NewControllerClient returns a client retrying transient failures a few times.
// Longer waits are left to the caller's polling.
func NewControllerClient() *RESTControllerClient {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 50 * time.Millisecond
	c.RetryWaitMax = 500 * time.Millisecond
	c.Logger = nil
	return &RESTControllerClient{http: c}
}

func (c *RESTControllerClient) ServerTemplates(ctx context.Context, controller deployment.Deployment) ([]ServerTemplate, error) {
	url := strings.TrimSuffix(controller.URL(), "/") + ServerTemplatesPath
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if controller.Username() != "" {
		req.SetBasicAuth(controller.Username(), controller.Password())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list server templates of %s", controller.Name())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing server templates of %s returned %d: %s", controller.Name(), resp.StatusCode, body)
	}

	list := serverTemplateList{}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, errors.Wrapf(err, "invalid server template list of %s", controller.Name())
	}
	return list.Templates, nil
}
