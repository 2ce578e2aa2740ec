package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/Yeboster/trade-republic-tracker/internal/domain"
)

// RecordToNotionProperties converts a TransactionRecord to Notion properties.
// The page title is the merchant; Transaction ID is a plain rich-text
// column used to match records across syncs.
func RecordToNotionProperties(rec domain.TransactionRecord) notionapi.Properties {
	props := notionapi.Properties{
		"Merchant": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.Merchant,
					},
				},
			},
		},
		"Transaction ID": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.ID,
					},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(rec.Timestamp.UTC())
					return &d
				}(),
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: rec.Amount.InexactFloat64(),
		},
		"Kind": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(rec.Kind),
			},
		},
		"Currency": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: func() string {
					if rec.Currency != "" {
						return rec.Currency
					}
					return "EUR"
				}(),
			},
		},
		"Counts Toward Spend": notionapi.CheckboxProperty{
			Checkbox: rec.Kind.CountsTowardSpend(),
		},
	}

	if rec.EventType != "" {
		props["Event Type"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.EventType,
					},
				},
			},
		}
	}

	if rec.Status != "" {
		props["Status"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: rec.Status,
			},
		}
	}

	props["Synced At"] = notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: func() *notionapi.Date {
				d := notionapi.Date(time.Now().UTC())
				return &d
			}(),
		},
	}

	return props
}

// extractRecordID reads the Transaction ID column from an existing page.
// Returns empty string when the column is missing or empty.
func extractRecordID(page notionapi.Page) string {
	prop, ok := page.Properties["Transaction ID"]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	if rt.RichText[0].PlainText != "" {
		return rt.RichText[0].PlainText
	}
	if rt.RichText[0].Text != nil {
		return rt.RichText[0].Text.Content
	}
	return ""
}
