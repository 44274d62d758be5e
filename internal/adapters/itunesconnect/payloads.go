package itunesconnect

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// flexibleID accepts ids the vendor sends either as JSON numbers or strings.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", trimmed)
	}
	*f = flexibleID(n.String())
	return nil
}

// numericOrString encodes id as a JSON number when it is one.
func numericOrString(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

type signInRequest struct {
	AccountName string `json:"accountName"`
	Password    string `json:"password"`
	RememberMe  bool   `json:"rememberMe"`
}

type securityCodeRequest struct {
	SecurityCode struct {
		Code string `json:"code"`
	} `json:"securityCode"`
}

type webSessionRequest struct {
	ContentProviderID any `json:"contentProviderId"`
	DsID              any `json:"dsId"`
}

type userDetailEnvelope struct {
	Data userDetail `json:"data"`
}

type userDetail struct {
	AssociatedAccounts []associatedAccount `json:"associatedAccounts"`
	SessionToken       struct {
		DsID              flexibleID `json:"dsId"`
		ContentProviderID flexibleID `json:"contentProviderId"`
	} `json:"sessionToken"`
	UserName    string     `json:"userName"`
	DisplayName string     `json:"displayName"`
	UserID      flexibleID `json:"userId"`
}

type associatedAccount struct {
	ContentProvider struct {
		ContentProviderID flexibleID `json:"contentProviderId"`
		Name              string     `json:"name"`
	} `json:"contentProvider"`
	Roles []string `json:"roles"`
}

type appsSummaryEnvelope struct {
	Data struct {
		Summaries []appSummary `json:"summaries"`
	} `json:"data"`
}

type appSummary struct {
	AdamID      flexibleID   `json:"adamId"`
	Name        string       `json:"name"`
	BundleID    string       `json:"bundleId"`
	IconURL     string       `json:"iconUrl"`
	VersionSets []versionSet `json:"versionSets"`
}

type versionSet struct {
	Type           string `json:"type"`
	PlatformString string `json:"platformString"`
}

type buildHistoryEnvelope struct {
	Data struct {
		Trains []train `json:"trains"`
	} `json:"data"`
}

type train struct {
	VersionString string `json:"versionString"`
	// Items is nil when the vendor omits the train's builds; they are then
	// fetched per train.
	Items *[]buildItem `json:"items"`
}

type buildItem struct {
	BuildVersion flexibleID `json:"buildVersion"`
	Platform     string     `json:"platform"`
}

type trainHistoryEnvelope struct {
	Data struct {
		Items []buildItem `json:"items"`
	} `json:"data"`
}

type buildDetailsEnvelope struct {
	Data struct {
		DsymURL string `json:"dsymurl"`
	} `json:"data"`
}
