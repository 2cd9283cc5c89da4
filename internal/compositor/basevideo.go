package compositor

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var driveFileID = regexp.MustCompile(`drive\.google\.com/file/d/([^/?#]+)`)

// DirectDownloadURL rewrites a Drive share link into its download form. Other
// URLs are returned unchanged.
func DirectDownloadURL(shareURL string) string {
	m := driveFileID.FindStringSubmatch(shareURL)
	if m == nil {
		return shareURL
	}
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(m[1])
}

// DownloadBaseVideo fetches the base clip to dest. Drive answers large files
// with an HTML confirmation page; the real link is read from that page.
func DownloadBaseVideo(ctx context.Context, httpClient *http.Client, sourceURL, dest string) error {
	target := DirectDownloadURL(sourceURL)

	resp, err := get(ctx, httpClient, target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if isHTML(resp) {
		confirmURL, err := confirmLink(resp.Body, resp.Request.URL)
		if err != nil {
			return err
		}
		resp.Body.Close()

		resp, err = get(ctx, httpClient, confirmURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if isHTML(resp) {
			return fmt.Errorf("base video download returned a web page instead of a video")
		}
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create base video file: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write base video: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("base video download is empty")
	}
	return nil
}

func get(ctx context.Context, httpClient *http.Client, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build base video request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download base video: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download base video: unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

func isHTML(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "text/html"
}

// confirmLink finds the download target on a Drive confirmation page: either
// the download form (action plus hidden inputs) or the direct download anchor.
func confirmLink(page io.Reader, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return "", fmt.Errorf("parse confirmation page: %w", err)
	}

	if form := doc.Find("form#download-form").First(); form.Length() > 0 {
		action, _ := form.Attr("action")
		target, err := base.Parse(action)
		if err != nil {
			return "", fmt.Errorf("parse download form action: %w", err)
		}
		query := target.Query()
		form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
			name, ok := input.Attr("name")
			if !ok || name == "" {
				return
			}
			value, _ := input.Attr("value")
			query.Set(name, value)
		})
		target.RawQuery = query.Encode()
		return target.String(), nil
	}

	if href, ok := doc.Find("a#uc-download-link").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		target, err := base.Parse(href)
		if err != nil {
			return "", fmt.Errorf("parse download link: %w", err)
		}
		return target.String(), nil
	}

	return "", fmt.Errorf("no download link on confirmation page")
}
