package sageintacct

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionResponse = `<?xml version="1.0" encoding="UTF-8"?>
<response>
	<control><status>success</status></control>
	<operation>
		<authentication><status>success</status><userid>xml_gateway</userid></authentication>
		<result>
			<status>success</status>
			<function>getAPISession</function>
			<data><api><sessionid>abc123.session</sessionid><endpoint>https://api.intacct.com/ia/xml/xmlgw.phtml</endpoint></api></data>
		</result>
	</operation>
</response>`

const failedLoginResponse = `<?xml version="1.0" encoding="UTF-8"?>
<response>
	<control><status>success</status></control>
	<operation>
		<authentication><status>failure</status></authentication>
		<errormessage><error><errorno>XL03000006</errorno><description2>Sign-in information is incorrect</description2></error></errormessage>
	</operation>
</response>`

func credentials() map[string]string {
	return map[string]string{
		FieldCompanyID:      "acme",
		FieldUserID:         "xml_gateway",
		FieldSenderID:       "acme_sender",
		FieldUserPassword:   "user-pass",
		FieldSenderPassword: "sender-pass",
	}
}

func TestBuildSessionRequest_ElementOrder(t *testing.T) {
	body, err := buildSessionRequest(credentials())
	require.NoError(t, err)

	xml := string(body)
	order := []string{
		"<request>",
		"<control><senderid>acme_sender</senderid><password>sender-pass</password><controlid>",
		"<uniqueid>false</uniqueid><dtdversion>3.0</dtdversion><includewhitespace>false</includewhitespace></control>",
		"<operation><authentication><login><userid>xml_gateway</userid><companyid>acme</companyid><password>user-pass</password></login></authentication>",
		`<content><function controlid="getAPISession"><getAPISession></getAPISession></function></content>`,
	}

	last := -1
	for _, fragment := range order {
		idx := strings.Index(xml, fragment)
		require.GreaterOrEqual(t, idx, 0, fragment)
		assert.Greater(t, idx, last, fragment)
		last = idx
	}
}

func TestBuildSessionRequest_EscapesValues(t *testing.T) {
	creds := credentials()
	creds[FieldUserPassword] = "p<a>ss&"

	body, err := buildSessionRequest(creds)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<password>p&lt;a&gt;ss&amp;</password>")
}

func TestSageIntacctConnectionTester(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected bool
	}{
		{name: "session issued", status: http.StatusOK, body: sessionResponse, expected: true},
		{name: "login refused", status: http.StatusOK, body: failedLoginResponse, expected: false},
		{name: "gateway error page", status: http.StatusBadGateway, body: "<html>bad gateway", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))

				body, _ := io.ReadAll(r.Body)
				assert.Contains(t, string(body), "<getAPISession>")

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			tester := NewSageIntacctConnectionTester(domain.IntegrationDeps{BaseURL: server.URL})

			ok, err := tester.TestConnection(context.Background(), domain.TestConnectionParams{Credentials: credentials()})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}
