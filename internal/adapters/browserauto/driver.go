// Package browserauto pilote TikTok Studio via un vrai navigateur
// (chromedp). C'est le collaborateur externe de l'orchestrateur: chaque
// étape est une attente bornée, un timeout remonte comme erreur
// réessayable.
package browserauto

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

const (
	uploadURL  = "https://www.tiktok.com/tiktokstudio/upload?from=webapp"
	contentURL = "https://www.tiktok.com/tiktokstudio/content"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Sélecteurs de la page d'upload de TikTok Studio.
const (
	selFileInput      = `input[type='file']`
	selCaptionEditor  = `div[contenteditable='true']`
	selPostButton     = `button[data-e2e="post_video_button"]`
	selTimeInput      = `input[class='TUXTextInputCore-input']`
	selMonthTitle     = `.month-title`
	xpScheduleToggle  = `//span[text()='Schedule']`
	xpConfirmation    = `//div[contains(text(), 'Your video has been uploaded') or contains(text(), 'Video published')]`
	jsToastText       = `(() => { const el = document.querySelector('div[class*="Toast-content"]'); return el ? el.textContent.trim() : ""; })()`
	jsCopyrightNotice = `(() => { const el = document.querySelector('.TUXModal.common-modal-confirm-modal'); return el !== null; })()`
)

type Options struct {
	Headless       bool
	UserAgent      string
	NavTimeout     time.Duration
	StepTimeout    time.Duration
	UploadTimeout  time.Duration
	ConfirmTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Headless:       true,
		UserAgent:      defaultUserAgent,
		NavTimeout:     60 * time.Second,
		StepTimeout:    30 * time.Second,
		UploadTimeout:  120 * time.Second,
		ConfirmTimeout: 60 * time.Second,
	}
}

type Driver struct {
	logger   zerolog.Logger
	sessions ports.SessionStore
	opts     Options
}

func New(logger zerolog.Logger, sessions ports.SessionStore, opts Options) *Driver {
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = def.NavTimeout
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = def.StepTimeout
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = def.UploadTimeout
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = def.ConfirmTimeout
	}
	return &Driver{logger: logger, sessions: sessions, opts: opts}
}

func (d *Driver) allocator(parent context.Context) (context.Context, context.CancelFunc) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.opts.Headless),
		chromedp.UserAgent(d.opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	return chromedp.NewExecAllocator(parent, allocOpts...)
}

func (d *Driver) injectCookies(account string) (chromedp.Action, error) {
	cookies, err := d.sessions.LoadSession(account)
	if err != nil {
		return nil, err
	}
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(network.CookieSameSite(strings.ToLower(c.SameSite)))
			if c.Expires > 0 {
				t := time.Unix(int64(c.Expires), 0)
				exp := cdp.TimeSinceEpoch(t)
				p = p.WithExpires(&exp)
			}
			if err := p.Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

// OpenUploadSurface lance un navigateur, injecte les cookies du compte et
// attend la page d'upload. Une redirection vers /login signifie une session
// expirée: ErrNotLoggedIn.
func (d *Driver) OpenUploadSurface(ctx context.Context, account string) (ports.UploadSession, error) {
	inject, err := d.injectCookies(account)
	if err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := d.allocator(ctx)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	s := &session{
		driver:  d,
		logger:  d.logger.With().Str("account", account).Logger(),
		ctx:     tabCtx,
		cancels: []context.CancelFunc{cancelTab, cancelAlloc},
	}

	navCtx, cancel := context.WithTimeout(tabCtx, d.opts.NavTimeout)
	defer cancel()
	err = chromedp.Run(navCtx,
		network.Enable(),
		inject,
		chromedp.Navigate(uploadURL),
		chromedp.WaitVisible(selFileInput, chromedp.ByQuery),
	)
	if err != nil {
		var loc string
		if lerr := chromedp.Run(tabCtx, chromedp.Location(&loc)); lerr == nil && strings.Contains(loc, "login") {
			_ = s.Close()
			return nil, fmt.Errorf("%w: @%s", ports.ErrNotLoggedIn, account)
		}
		_ = s.Close()
		return nil, fmt.Errorf("open upload surface: %w", err)
	}

	s.logger.Info().Msg("upload surface ready")
	return s, nil
}

// VerifyPublished ouvre la page de contenu du studio et cherche l'identité
// vidéo dans la liste des posts en ligne.
func (d *Driver) VerifyPublished(ctx context.Context, account, videoID string) (bool, error) {
	inject, err := d.injectCookies(account)
	if err != nil {
		return false, err
	}

	allocCtx, cancelAlloc := d.allocator(ctx)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	navCtx, cancel := context.WithTimeout(tabCtx, d.opts.NavTimeout)
	defer cancel()

	var found bool
	err = chromedp.Run(navCtx,
		network.Enable(),
		inject,
		chromedp.Navigate(contentURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(fmt.Sprintf(`document.body.innerText.includes(%q)`, videoID), &found),
	)
	if err != nil {
		return false, fmt.Errorf("verify published: %w", err)
	}
	return found, nil
}

type session struct {
	driver  *Driver
	logger  zerolog.Logger
	ctx     context.Context
	cancels []context.CancelFunc
}

func (s *session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// xpathExists répond sans attendre l'apparition du nœud: l'absence est une
// réponse, pas un timeout.
func (s *session) xpathExists(xp string) (bool, error) {
	var found bool
	js := fmt.Sprintf(`document.evaluate(%q, document, null, XPathResult.BOOLEAN_TYPE, null).booleanValue`, "boolean("+xp+")")
	if err := s.run(s.driver.opts.StepTimeout, chromedp.Evaluate(js, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// requireOption classe le résultat d'un xpathExists sur une option de
// picker: absente, c'est la plateforme qui refuse l'horaire; toute autre
// défaillance reste réessayable.
func requireOption(present bool, lookupErr error, what string) error {
	if lookupErr != nil {
		return fmt.Errorf("lookup %s: %w", what, lookupErr)
	}
	if !present {
		return fmt.Errorf("%w: %s", ports.ErrUnsupportedTime, what)
	}
	return nil
}

// AttachFile pousse le fichier dans l'input caché puis attend la fin du
// transfert (l'éditeur de légende devient visible).
func (s *session) AttachFile(ctx context.Context, path string) error {
	if err := s.run(s.driver.opts.StepTimeout,
		chromedp.WaitVisible(selFileInput, chromedp.ByQuery),
		chromedp.SetUploadFiles(selFileInput, []string{path}, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	if err := s.run(s.driver.opts.UploadTimeout,
		chromedp.WaitVisible(selCaptionEditor, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("upload of %s did not complete: %w", path, err)
	}
	s.logger.Debug().Str("file", path).Msg("file attached")
	return nil
}

func (s *session) SetCaption(ctx context.Context, text string) error {
	err := s.run(s.driver.opts.StepTimeout,
		chromedp.Click(selCaptionEditor, chromedp.ByQuery),
		// L'éditeur arrive prérempli avec le nom du fichier.
		chromedp.Evaluate(`(() => { document.execCommand('selectAll'); document.execCommand('delete'); })()`, nil),
		chromedp.SendKeys(selCaptionEditor, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("set caption: %w", err)
	}
	return nil
}

// SetScheduleTime active le mode programmé puis renseigne heure et date
// via les pickers de la page. Un créneau que la page refuse d'afficher est
// un refus plateforme, pas une erreur interne.
func (s *session) SetScheduleTime(ctx context.Context, at time.Time) error {
	if err := s.run(s.driver.opts.StepTimeout,
		chromedp.Click(xpScheduleToggle, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("enable schedule: %w", err)
	}

	if err := s.run(s.driver.opts.StepTimeout,
		chromedp.Click(selTimeInput, chromedp.ByQuery),
		chromedp.WaitVisible(`//div[contains(@class,'tiktok-timepicker-option-list')]`, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("open time picker: %w", err)
	}

	hour := fmt.Sprintf("%02d", at.Hour())
	minute := fmt.Sprintf("%02d", at.Minute())
	for col, part := range []string{hour, minute} {
		xp := fmt.Sprintf(`(//div[contains(@class,'tiktok-timepicker-option-list')])[%d]//span[text()='%s']`, col+1, part)
		present, lookErr := s.xpathExists(xp)
		// Seule une option réellement absente est un refus plateforme;
		// un DOM pas encore prêt reste une erreur réessayable.
		if err := requireOption(present, lookErr, fmt.Sprintf("time %s:%s", hour, minute)); err != nil {
			return err
		}
		if err := s.run(s.driver.opts.StepTimeout, chromedp.Click(xp, chromedp.BySearch)); err != nil {
			return fmt.Errorf("pick time option %s: %w", part, err)
		}
	}

	if err := s.setDate(at); err != nil {
		return err
	}
	s.logger.Debug().Time("at", at).Msg("schedule time set")
	return nil
}

func (s *session) setDate(at time.Time) error {
	target := fmt.Sprintf("%s %d", at.Month().String(), at.Year())

	open := s.run(s.driver.opts.StepTimeout,
		chromedp.Click(`(//input[@class='TUXTextInputCore-input'])[2]`, chromedp.BySearch),
		chromedp.WaitVisible(selMonthTitle, chromedp.ByQuery),
	)
	if open != nil {
		return fmt.Errorf("open calendar: %w", open)
	}

	// Le calendrier s'ouvre sur le mois courant; on avance jusqu'au mois
	// cible. La plateforme ne laisse naviguer que dans sa propre fenêtre
	// autorisée: au-delà, le mois cible est inatteignable.
	for i := 0; i < 13; i++ {
		var title string
		if err := s.run(s.driver.opts.StepTimeout,
			chromedp.Text(selMonthTitle, &title, chromedp.ByQuery),
		); err != nil {
			return fmt.Errorf("read calendar month: %w", err)
		}
		if strings.TrimSpace(title) == target {
			break
		}
		if i == 12 {
			return fmt.Errorf("%w: month %s not reachable", ports.ErrUnsupportedTime, target)
		}
		if err := s.run(s.driver.opts.StepTimeout,
			chromedp.Click(`(//div[contains(@class,'calendar-wrapper')]//*[contains(@class,'arrow')])[last()]`, chromedp.BySearch),
		); err != nil {
			return fmt.Errorf("calendar navigation: %w", err)
		}
	}

	day := fmt.Sprintf(`//div[contains(@class,'calendar-wrapper')]//span[contains(@class,'day') and text()='%d']`, at.Day())
	present, lookErr := s.xpathExists(day)
	if err := requireOption(present, lookErr, fmt.Sprintf("day %d", at.Day())); err != nil {
		return err
	}
	if err := s.run(s.driver.opts.StepTimeout, chromedp.Click(day, chromedp.BySearch)); err != nil {
		return fmt.Errorf("pick day %d: %w", at.Day(), err)
	}
	return nil
}

func (s *session) DetectCopyrightWarning(ctx context.Context) (bool, error) {
	var flagged bool
	if err := s.run(s.driver.opts.StepTimeout,
		chromedp.Evaluate(jsCopyrightNotice, &flagged),
	); err != nil {
		return false, fmt.Errorf("copyright check: %w", err)
	}
	return flagged, nil
}

// Submit clique sur le bouton de post et scrute les signaux de succès:
// redirection vers /content, texte de confirmation, disparition du bouton.
// Un toast inattendu signale une restriction du compte.
func (s *session) Submit(ctx context.Context) (ports.Confirmation, error) {
	if err := s.run(s.driver.opts.StepTimeout,
		chromedp.Click(selPostButton, chromedp.ByQuery),
	); err != nil {
		return ports.Confirmation{}, fmt.Errorf("click post: %w", err)
	}

	deadline := time.Now().Add(s.driver.opts.ConfirmTimeout)
	for time.Now().Before(deadline) {
		var toast string
		if err := s.run(5*time.Second, chromedp.Evaluate(jsToastText, &toast)); err == nil && toast != "" {
			if !strings.Contains(strings.ToLower(toast), "published") {
				return ports.Confirmation{}, fmt.Errorf("%w: %s", ports.ErrRateLimited, toast)
			}
			return ports.Confirmation{At: time.Now(), Message: toast}, nil
		}

		var loc string
		if err := s.run(5*time.Second, chromedp.Location(&loc)); err == nil && strings.HasSuffix(strings.TrimRight(loc, "/"), "/content") {
			return ports.Confirmation{At: time.Now(), Message: "redirected to content"}, nil
		}

		if confirmed, err := s.xpathExists(xpConfirmation); err == nil && confirmed {
			return ports.Confirmation{At: time.Now(), Message: "upload confirmed"}, nil
		}

		time.Sleep(2 * time.Second)
	}

	return ports.Confirmation{}, fmt.Errorf("post confirmation timed out after %s", s.driver.opts.ConfirmTimeout)
}

func (s *session) Reset(ctx context.Context) error {
	err := s.run(s.driver.opts.NavTimeout,
		chromedp.Navigate(uploadURL),
		chromedp.WaitVisible(selFileInput, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("reset upload page: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	for _, cancel := range s.cancels {
		cancel()
	}
	return nil
}
