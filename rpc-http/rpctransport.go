package rpchttp

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/sensepost/tsgw/utils"
	"github.com/staaldraad/go-ntlm/ntlm"
	"golang.org/x/net/proxy"
)

//inChannelContentLength the gateway expects an effectively unbounded
//request body on the in leg and exactly a CONN/A1 worth on the out leg
const (
	inChannelContentLength  = 1073741824
	outChannelContentLength = 76
)

//Transport owns the two HTTP legs of an RPC over HTTP virtual
//connection. Open both with VirtualConnection, then hand In and Out
//to a BindSession.
type Transport struct {
	settings *utils.Session

	inConn  net.Conn
	outConn net.Conn

	in  InChannel
	out OutChannel
}

//NewTransport a transport for the gateway named in the settings
func NewTransport(settings *utils.Session) *Transport {
	return &Transport{settings: settings}
}

//In the channel carrying PDUs to the gateway, valid after VirtualConnection
func (t *Transport) In() InChannel {
	return t.in
}

//Out the channel carrying PDUs from the gateway, valid after VirtualConnection
func (t *Transport) Out() OutChannel {
	return t.out
}

//dial opens the TCP or TLS stream to the gateway, through the SOCKS5
//proxy when one is configured
func (t *Transport) dial(u *url.URL) (net.Conn, error) {
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "http" {
			host = fmt.Sprintf("%s:80", u.Host)
		} else {
			host = fmt.Sprintf("%s:443", u.Host)
		}
	}

	var dialer proxy.Dialer = proxy.Direct
	if t.settings.Proxy != "" {
		proxyURL, err := url.Parse(t.settings.Proxy)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid proxy url: %s", ErrChannelIO, err)
		}
		dialer, err = proxy.FromURL(proxyURL, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("%w: proxy: %s", ErrChannelIO, err)
		}
	}

	conn, err := dialer.Dial("tcp", host)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %s", ErrChannelIO, host, err)
	}
	if u.Scheme == "http" {
		return conn, nil
	}

	conf := &tls.Config{ServerName: u.Hostname(), InsecureSkipVerify: t.settings.Insecure}
	tlsConn := tls.Client(conn, conf)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: tls handshake with %s: %s", ErrChannelIO, host, err)
	}
	return tlsConn, nil
}

//legHeaders the fixed header block both legs share
func legHeaders(verb string, u *url.URL) string {
	request := fmt.Sprintf("%s %s HTTP/1.1\r\nHost: %s\r\n", verb, u.RequestURI(), u.Host)
	request = fmt.Sprintf("%sUser-Agent: MSRPC\r\n", request)
	request = fmt.Sprintf("%sCache-Control: no-cache\r\n", request)
	request = fmt.Sprintf("%sAccept: application/rpc\r\n", request)
	request = fmt.Sprintf("%sConnection: keep-alive\r\n", request)
	return request
}

//challengeFromResponse digs the NTLM challenge out of a raw 401
func challengeFromResponse(data []byte) ([]byte, error) {
	for _, line := range strings.Split(string(data), "\r\n") {
		if n := strings.SplitN(line, ": ", 2); len(n) == 2 {
			if strings.EqualFold(n[0], "WWW-Authenticate") && strings.HasPrefix(n[1], "NTLM ") {
				return utils.DecBase64(strings.TrimPrefix(n[1], "NTLM "))
			}
		}
	}
	return nil, fmt.Errorf("%w: no NTLM challenge in gateway response", ErrChannelIO)
}

//openLeg performs the two request NTLM dance on a fresh stream. The
//second request is left open, its body is the RPC channel.
func (t *Transport) openLeg(verb string, u *url.URL) (net.Conn, error) {
	connection, err := t.dial(u)
	if err != nil {
		return nil, err
	}

	request := legHeaders(verb, u)
	requestInit := fmt.Sprintf("%sAuthorization: NTLM %s\r\n", request, utils.EncBase64(utils.NegotiateSP()))
	requestInit = fmt.Sprintf("%sContent-Length: 0\r\n\r\n", requestInit)

	if _, err := connection.Write([]byte(requestInit)); err != nil {
		connection.Close()
		return nil, fmt.Errorf("%w: %s negotiate: %s", ErrChannelIO, verb, err)
	}
	data := make([]byte, 4096)
	n, err := connection.Read(data)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("%w: %s challenge read: %s", ErrChannelIO, verb, err)
	}
	challengeBytes, err := challengeFromResponse(data[:n])
	if err != nil {
		connection.Close()
		return nil, err
	}

	session, err := ntlm.CreateClientSession(ntlm.Version2, ntlm.ConnectionlessMode)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("%w: %s", ErrAuthOracleInit, err)
	}
	session.SetUserInfo(t.settings.GatewayUsername, t.settings.GatewayPassword, t.settings.GatewayDomain)
	challenge, err := ntlm.ParseChallengeMessage(challengeBytes)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("%w: %s challenge: %s", ErrMalformedPdu, verb, err)
	}
	if err := session.ProcessChallengeMessage(challenge); err != nil {
		connection.Close()
		return nil, fmt.Errorf("%w: %s", ErrAuthOracleInit, err)
	}
	authenticate, err := session.GenerateAuthenticateMessage()
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("%w: %s", ErrAuthOracleInit, err)
	}

	contentLength := outChannelContentLength
	if verb == "RPC_IN_DATA" {
		contentLength = inChannelContentLength
	}
	request = fmt.Sprintf("%sContent-Length: %d\r\n", request, contentLength)
	request = fmt.Sprintf("%sAuthorization: NTLM %s\r\n\r\n", request, utils.EncBase64(authenticate.Bytes()))

	if _, err := connection.Write([]byte(request)); err != nil {
		connection.Close()
		return nil, fmt.Errorf("%w: %s authenticate: %s", ErrChannelIO, verb, err)
	}
	utils.Trace.Printf("transport: %s leg open to %s", verb, u.Host)
	return connection, nil
}

//stripResponseHeader drops the HTTP 200 header block off the front of
//the out channel stream, keeping any PDU bytes packed into the same
//segment
func stripResponseHeader(conn net.Conn) ([]byte, error) {
	data := make([]byte, 4096)
	n, err := conn.Read(data)
	if err != nil {
		return nil, fmt.Errorf("%w: reading channel response: %s", ErrChannelIO, err)
	}
	if !bytes.HasPrefix(data[:n], []byte("HTTP/1.1 200")) && !bytes.HasPrefix(data[:n], []byte("HTTP/1.0 200")) {
		line := string(data[:n])
		if k := strings.Index(line, "\r\n"); k >= 0 {
			line = line[:k]
		}
		return nil, fmt.Errorf("%w: gateway refused out channel: %s", ErrChannelIO, line)
	}
	if k := bytes.Index(data[:n], []byte("\r\n\r\n")); k >= 0 {
		return data[k+4 : n], nil
	}
	return nil, nil
}

//VirtualConnection opens both legs and performs the RTS connection
//establishment, CONN/A1 on the out channel then CONN/B1 on the in
//channel with a shared virtual connect cookie
func (t *Transport) VirtualConnection(URL string) error {
	u, err := url.Parse(URL)
	if err != nil {
		return fmt.Errorf("%w: invalid gateway url: %s", ErrChannelIO, err)
	}

	t.inConn, err = t.openLeg("RPC_IN_DATA", u)
	if err != nil {
		return err
	}
	t.outConn, err = t.openLeg("RPC_OUT_DATA", u)
	if err != nil {
		t.inConn.Close()
		return err
	}

	connB1 := ConnB1()
	connA1 := ConnA1(connB1.VirtualConnectCookie.Cookie)

	if _, err := t.outConn.Write(connA1.Marshal()); err != nil {
		t.Close()
		return fmt.Errorf("%w: conn/a1: %s", ErrChannelIO, err)
	}
	if _, err := t.inConn.Write(connB1.Marshal()); err != nil {
		t.Close()
		return fmt.Errorf("%w: conn/b1: %s", ErrChannelIO, err)
	}

	early, err := stripResponseHeader(t.outConn)
	if err != nil {
		t.Close()
		return err
	}
	utils.Trace.Printf("transport: virtual connection up, %d early bytes", len(early))

	t.in = NewWriterChannel(t.inConn)
	out := &readerChannel{r: t.outConn}
	out.pending = append(out.pending, early...)
	t.out = out
	return nil
}

//Close tears down both legs
func (t *Transport) Close() {
	if t.inConn != nil {
		t.inConn.Close()
	}
	if t.outConn != nil {
		t.outConn.Close()
	}
}
