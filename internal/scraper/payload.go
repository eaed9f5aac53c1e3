package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

// nxPayload mirrors the storefront's embedded title-detail JSON. Only the
// fields the record needs are decoded; everything else is ignored.
type nxPayload struct {
	ID              json.Number       `json:"id"`
	FormalName      string            `json:"formal_name"`
	CatchCopy       string            `json:"catch_copy"`
	Description     string            `json:"description"`
	Genre           string            `json:"genre"`
	ReleaseDate     string            `json:"release_date_on_eshop"`
	HeroBannerURL   string            `json:"hero_banner_url"`
	LabelPlatform   string            `json:"label_platform"`
	CloudBackupType string            `json:"cloud_backup_type"`
	InAppPurchase   *bool             `json:"in_app_purchase"`
	PlayerNumber    json.RawMessage   `json:"player_number"`
	Languages       []languageEntry   `json:"languages"`
	Applications    []application     `json:"applications"`
	Publisher       *publisher        `json:"publisher"`
	RatingInfo      *ratingInfo       `json:"rating_info"`
	Screenshots     []screenshot      `json:"screenshots"`
	PlayStyles      []playStyle       `json:"play_styles"`
	RomSizeInfos    []eshop.RomSizeInfo `json:"rom_size_infos"`
}

type application struct {
	ID string `json:"id"`
}

type publisher struct {
	ID   *int64 `json:"id"`
	Name string `json:"name"`
}

type ratingInfo struct {
	Rating *struct {
		Age  *int   `json:"age"`
		Name string `json:"name"`
	} `json:"rating"`
}

type screenshot struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

type playStyle struct {
	Name string `json:"name"`
}

// languageEntry tolerates both spellings the storefront has used: a bare
// string and an object carrying a name.
type languageEntry struct {
	Name string
}

func (l *languageEntry) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &l.Name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	l.Name = obj.Name
	return nil
}

// parsePayload decodes the raw title-detail JSON captured from the page.
func parsePayload(raw []byte) (*nxPayload, error) {
	var p nxPayload
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode title detail payload: %w", err)
	}
	return &p, nil
}

// buildRecord maps the payload onto a GameRecord for the id the caller
// asked about. The canonical title id comes from the payload's application
// list when present; an nsuid input with no discoverable title id cannot
// produce a storable record.
func buildRecord(p *nxPayload, inputID string, kind eshop.IDKind) (*eshop.GameRecord, error) {
	if p.FormalName == "" {
		return nil, ErrNotFound
	}

	titleID := inputID
	if len(p.Applications) > 0 && p.Applications[0].ID != "" {
		titleID = p.Applications[0].ID
	} else if kind == eshop.IDKindNSUID {
		return nil, fmt.Errorf("%w: nsuid %s", ErrTitleIDUnresolved, inputID)
	}

	nsuid := inputID
	if kind != eshop.IDKindNSUID {
		nsuid = p.ID.String()
		if nsuid == "" || nsuid == "0" {
			nsuid = ""
		}
	}

	rec := &eshop.GameRecord{
		TitleID:         titleID,
		NSUID:           nsuid,
		FormalName:      p.FormalName,
		NameZhHant:      p.FormalName,
		CatchCopy:       p.CatchCopy,
		Description:     p.Description,
		Genre:           p.Genre,
		ReleaseDate:     p.ReleaseDate,
		HeroBannerURL:   p.HeroBannerURL,
		Platform:        p.LabelPlatform,
		CloudBackupType: p.CloudBackupType,
		InAppPurchase:   p.InAppPurchase,
		PlayerNumber:    compactJSON(p.PlayerNumber),
		Region:          eshop.Region,
		DataSource:      eshop.DataSourceScraper,
	}

	if p.Publisher != nil {
		rec.PublisherName = p.Publisher.Name
		rec.PublisherID = p.Publisher.ID
	}
	if p.RatingInfo != nil && p.RatingInfo.Rating != nil {
		rec.RatingAge = p.RatingInfo.Rating.Age
		rec.RatingName = p.RatingInfo.Rating.Name
	}

	for _, shot := range p.Screenshots {
		if len(shot.Images) > 0 && shot.Images[0].URL != "" {
			rec.Screenshots = append(rec.Screenshots, shot.Images[0].URL)
		}
	}
	for _, style := range p.PlayStyles {
		if style.Name != "" {
			rec.PlayStyles = append(rec.PlayStyles, style.Name)
		}
	}
	for _, lang := range p.Languages {
		if lang.Name != "" {
			rec.Languages = append(rec.Languages, lang.Name)
		}
	}
	if size, ok := eshop.SelectRomSize(p.RomSizeInfos); ok {
		rec.RomSize = &size
	}
	return rec, nil
}

// metaRecord builds the degraded record from meta-tag content when the page
// carried no JSON payload. Only the name and publisher are recoverable.
func metaRecord(name, publisherName, inputID string, kind eshop.IDKind) (*eshop.GameRecord, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	if kind == eshop.IDKindNSUID {
		// Meta tags never carry the title id, so there is no key to store
		// an nsuid-addressed page under.
		return nil, fmt.Errorf("%w: nsuid %s", ErrTitleIDUnresolved, inputID)
	}
	return &eshop.GameRecord{
		TitleID:       inputID,
		NameZhHant:    name,
		PublisherName: publisherName,
		Region:        eshop.Region,
		DataSource:    eshop.DataSourceScraper,
	}, nil
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	s := buf.String()
	if s == "{}" {
		return ""
	}
	return s
}
