package mailstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"jobtrack_worker/core/port/out"
	"jobtrack_worker/pkg/resilience"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailConfig holds Gmail credentials. Transport is the base client under the
// OAuth token source. Endpoint and HTTPClient bypass OAuth and are for tests.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	User         string
	Transport    *http.Client
	Endpoint     string
	HTTPClient   *http.Client
}

// Gmail maps tags onto Gmail labels. Labels are created on first use.
type Gmail struct {
	svc  *gmail.Service
	user string
	cb   *resilience.Breaker
	log  zerolog.Logger

	mu       sync.Mutex
	labelIDs map[string]string // name -> id
	names    map[string]string // id -> name
}

var _ out.MailStore = (*Gmail)(nil)

func NewGmail(ctx context.Context, cfg GmailConfig, log zerolog.Logger) (*Gmail, error) {
	if cfg.User == "" {
		cfg.User = "me"
	}

	var opts []option.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	} else {
		if cfg.Transport != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.Transport)
		}
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{gmail.GmailModifyScope, gmail.GmailLabelsScope},
			Endpoint:     google.Endpoint,
		}
		opts = append(opts, option.WithTokenSource(oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	logger := log.With().Str("component", "gmail_store").Logger()
	cb := resilience.DefaultBreakerConfig("gmail-api")
	cb.MaxRequests = 3
	cb.ConsecutiveFailures = 6
	cb.MinRequests = 10
	cb.FailureRatio = 0.6

	return &Gmail{
		svc:  svc,
		user: cfg.User,
		cb:   resilience.NewBreaker(cb, logger),
		log:  logger,
	}, nil
}

// =============================================================================
// out.MailStore
// =============================================================================

func (g *Gmail) Query(ctx context.Context, q out.TagQuery) ([]out.MessageRef, error) {
	expr, err := g.searchExpr(ctx, q)
	if err != nil {
		return nil, err
	}

	var refs []out.MessageRef
	pageToken := ""
	for {
		call := g.svc.Users.Messages.List(g.user).Q(expr).MaxResults(500)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		var resp *gmail.ListMessagesResponse
		err := g.execute("list messages", func() error {
			var err error
			resp, err = call.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, m := range resp.Messages {
			refs = append(refs, out.MessageRef{ID: m.Id})
			if q.Limit > 0 && len(refs) >= q.Limit {
				return refs, nil
			}
		}
		if resp.NextPageToken == "" {
			return refs, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (g *Gmail) MutateTags(ctx context.Context, messageID string, add, remove []string) error {
	req := &gmail.ModifyMessageRequest{}
	for _, name := range add {
		id, err := g.labelID(ctx, name, true)
		if err != nil {
			return err
		}
		req.AddLabelIds = append(req.AddLabelIds, id)
	}
	for _, name := range remove {
		id, err := g.labelID(ctx, name, false)
		if err != nil {
			return err
		}
		if id != "" {
			req.RemoveLabelIds = append(req.RemoveLabelIds, id)
		}
	}
	if len(req.AddLabelIds) == 0 && len(req.RemoveLabelIds) == 0 {
		return nil
	}
	return g.execute("modify labels", func() error {
		_, err := g.svc.Users.Messages.Modify(g.user, messageID, req).Context(ctx).Do()
		return err
	})
}

func (g *Gmail) ReadRaw(ctx context.Context, ref out.MessageRef) ([]byte, error) {
	var msg *gmail.Message
	err := g.execute("get raw message", func() error {
		var err error
		msg, err = g.svc.Users.Messages.Get(g.user, ref.ID).Format("raw").Context(ctx).Do()
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, ref.ID)
		}
		return nil, err
	}
	data, err := base64.URLEncoding.DecodeString(msg.Raw)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(msg.Raw)
	}
	if err != nil {
		return nil, fmt.Errorf("decode raw message %s: %w", ref.ID, err)
	}
	return data, nil
}

func (g *Gmail) Tags(ctx context.Context, messageID string) ([]string, error) {
	var msg *gmail.Message
	err := g.execute("get labels", func() error {
		var err error
		msg, err = g.svc.Users.Messages.Get(g.user, messageID).Format("minimal").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := g.loadLabels(ctx, false); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	tags := make([]string, 0, len(msg.LabelIds))
	for _, id := range msg.LabelIds {
		if name, ok := g.names[id]; ok {
			tags = append(tags, name)
		}
	}
	return tags, nil
}

// =============================================================================
// Labels and search
// =============================================================================

// searchExpr renders a TagQuery as a Gmail search. A prefix becomes an OR over
// the existing labels that start with it.
func (g *Gmail) searchExpr(ctx context.Context, q out.TagQuery) (string, error) {
	var terms []string
	for _, t := range q.Include {
		terms = append(terms, "label:"+labelSearchName(t))
	}
	for _, t := range q.Exclude {
		terms = append(terms, "-label:"+labelSearchName(t))
	}
	if q.Prefix != "" {
		if err := g.loadLabels(ctx, false); err != nil {
			return "", err
		}
		g.mu.Lock()
		var alts []string
		for name := range g.labelIDs {
			if strings.HasPrefix(name, q.Prefix) {
				alts = append(alts, "label:"+labelSearchName(name))
			}
		}
		g.mu.Unlock()
		if len(alts) == 0 {
			// No label carries the prefix yet: match nothing.
			return "label:" + labelSearchName(q.Prefix+"none"), nil
		}
		terms = append(terms, "{"+strings.Join(alts, " ")+"}")
	}
	if len(terms) == 0 {
		return "in:anywhere", nil
	}
	return strings.Join(terms, " "), nil
}

// labelSearchName follows Gmail's search form of a label name.
func labelSearchName(name string) string {
	r := strings.NewReplacer("/", "-", " ", "-")
	return strings.ToLower(r.Replace(name))
}

func (g *Gmail) labelID(ctx context.Context, name string, create bool) (string, error) {
	if err := g.loadLabels(ctx, false); err != nil {
		return "", err
	}
	g.mu.Lock()
	id, ok := g.labelIDs[name]
	g.mu.Unlock()
	if ok || !create {
		return id, nil
	}

	var created *gmail.Label
	err := g.execute("create label", func() error {
		var err error
		created, err = g.svc.Users.Labels.Create(g.user, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		if isConflict(err) {
			if err := g.loadLabels(ctx, true); err != nil {
				return "", err
			}
			g.mu.Lock()
			defer g.mu.Unlock()
			return g.labelIDs[name], nil
		}
		return "", err
	}

	g.mu.Lock()
	g.labelIDs[created.Name] = created.Id
	g.names[created.Id] = created.Name
	g.mu.Unlock()
	g.log.Info().Str("label", name).Msg("label created")
	return created.Id, nil
}

func (g *Gmail) loadLabels(ctx context.Context, force bool) error {
	g.mu.Lock()
	loaded := g.labelIDs != nil
	g.mu.Unlock()
	if loaded && !force {
		return nil
	}

	var resp *gmail.ListLabelsResponse
	err := g.execute("list labels", func() error {
		var err error
		resp, err = g.svc.Users.Labels.List(g.user).Context(ctx).Do()
		return err
	})
	if err != nil {
		return err
	}

	ids := make(map[string]string, len(resp.Labels))
	names := make(map[string]string, len(resp.Labels))
	for _, l := range resp.Labels {
		ids[l.Name] = l.Id
		names[l.Id] = l.Name
	}
	g.mu.Lock()
	g.labelIDs, g.names = ids, names
	g.mu.Unlock()
	return nil
}

// =============================================================================
// Circuit breaker
// =============================================================================

// execute runs fn under the breaker. Client errors do not count as failures.
func (g *Gmail) execute(operation string, fn func() error) error {
	err := g.cb.Execute(func() error {
		err := fn()
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case 400, 401, 403, 404, 409:
				return resilience.Permanent(err)
			}
		}
		return err
	})
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code >= 500 {
		g.log.Warn().Err(err).Str("operation", operation).Str("state", g.cb.State()).Msg("gmail call failed")
	}
	return fmt.Errorf("gmail %s: %w", operation, err)
}

// State reports the breaker state for health output.
func (g *Gmail) State() string {
	return g.cb.State()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func isConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
