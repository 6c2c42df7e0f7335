package sageintacct

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/flowbaker/vault/pkg/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultGatewayURL = "https://api.intacct.com/ia/xml/xmlgw.phtml"
	dtdVersion        = "3.0"

	maxResponseSize = 1 << 20
)

const (
	FieldCompanyID      = "companyId"
	FieldUserID         = "userId"
	FieldSenderID       = "senderId"
	FieldUserPassword   = "userPassword"
	FieldSenderPassword = "senderPassword"
)

var Definition = domain.ConnectorDefinition{
	Type:            domain.IntegrationType_SageIntacct,
	Name:            "Sage Intacct",
	RequiredFields:  []string{FieldCompanyID, FieldUserID, FieldSenderID, FieldUserPassword, FieldSenderPassword},
	SensitiveFields: []string{FieldUserPassword, FieldSenderPassword},
}

// The gateway validates element order against its DTD, so the request is
// marshalled from structs rather than a map.
type sessionRequest struct {
	XMLName   xml.Name         `xml:"request"`
	Control   requestControl   `xml:"control"`
	Operation requestOperation `xml:"operation"`
}

type requestControl struct {
	SenderID          string `xml:"senderid"`
	Password          string `xml:"password"`
	ControlID         string `xml:"controlid"`
	UniqueID          string `xml:"uniqueid"`
	DTDVersion        string `xml:"dtdversion"`
	IncludeWhitespace string `xml:"includewhitespace"`
}

type requestOperation struct {
	Login   requestLogin   `xml:"authentication>login"`
	Content requestContent `xml:"content"`
}

type requestLogin struct {
	UserID    string `xml:"userid"`
	CompanyID string `xml:"companyid"`
	Password  string `xml:"password"`
}

type requestContent struct {
	Function requestFunction `xml:"function"`
}

type requestFunction struct {
	ControlID     string   `xml:"controlid,attr"`
	GetAPISession struct{} `xml:"getAPISession"`
}

type SageIntacctConnectionTester struct {
	client     *http.Client
	gatewayURL string
}

func NewSageIntacctConnectionTester(deps domain.IntegrationDeps) domain.SourceConnector {
	return &SageIntacctConnectionTester{
		client:     deps.Client(),
		gatewayURL: deps.BaseURLOr(defaultGatewayURL),
	}
}

func (c *SageIntacctConnectionTester) Definition() domain.ConnectorDefinition {
	return Definition
}

func buildSessionRequest(credentials map[string]string) ([]byte, error) {
	request := sessionRequest{
		Control: requestControl{
			SenderID:          credentials[FieldSenderID],
			Password:          credentials[FieldSenderPassword],
			ControlID:         uuid.NewString(),
			UniqueID:          "false",
			DTDVersion:        dtdVersion,
			IncludeWhitespace: "false",
		},
		Operation: requestOperation{
			Login: requestLogin{
				UserID:    credentials[FieldUserID],
				CompanyID: credentials[FieldCompanyID],
				Password:  credentials[FieldUserPassword],
			},
			Content: requestContent{
				Function: requestFunction{ControlID: "getAPISession"},
			},
		},
	}

	body, err := xml.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session request: %w", err)
	}

	return append([]byte(xml.Header), body...), nil
}

// sessionID extracts the negotiated session id, or "" when the gateway
// refused the login or answered with something that is not XML.
func sessionID(body []byte) string {
	mv, err := mxj.NewMapXml(body)
	if err != nil {
		return ""
	}

	values, err := mv.ValuesForKey("sessionid")
	if err != nil || len(values) == 0 {
		return ""
	}

	id, _ := values[0].(string)

	return strings.TrimSpace(id)
}

func (c *SageIntacctConnectionTester) TestConnection(ctx context.Context, params domain.TestConnectionParams) (bool, error) {
	body, err := buildSessionRequest(params.Credentials)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach Sage Intacct: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, fmt.Errorf("failed to read Sage Intacct response: %w", err)
	}

	if sessionID(respBody) == "" {
		snippet := respBody
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}

		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("body", string(snippet)).
			Msg("Sage Intacct did not return a session")

		return false, nil
	}

	return true, nil
}
