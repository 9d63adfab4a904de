package utils

import "net/http/cookiejar"

//Session containing the gateway connection variables
type Session struct {
	GatewayUsername string
	GatewayDomain   string
	GatewayPassword string
	GatewayHostname string

	//credentials used for the remote desktop session itself
	Username string
	Domain   string
	Password string

	UseSameCredentialsForSession bool

	Proxy     string
	Insecure  bool
	Verbose   bool
	CookieJar *cookiejar.Jar
}

//Credentials a resolved username/domain/password triple
type Credentials struct {
	Username string
	Domain   string
	Password string
}

//GatewayCredentials returns the gateway credential triple from the session
func (s *Session) GatewayCredentials() Credentials {
	return Credentials{
		Username: s.GatewayUsername,
		Domain:   s.GatewayDomain,
		Password: s.GatewayPassword,
	}
}

//YamlConfig holds the config for the yaml file
type YamlConfig struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Domain    string `yaml:"domain"`
	Hostname  string `yaml:"hostname"`
	Proxy     string `yaml:"proxy"`
	Insecure  bool   `yaml:"insecure"`
	SameCreds bool   `yaml:"samecreds"`
}
