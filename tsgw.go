package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/howeyc/gopass"
	httpntlm "github.com/sensepost/tsgw/http-ntlm"
	rpchttp "github.com/sensepost/tsgw/rpc-http"
	"github.com/sensepost/tsgw/utils"
	"github.com/urfave/cli"
)

//globals
var config utils.Session

func exit(err error) {
	//we had an error
	if err != nil {
		utils.Error.Println(err)
		os.Exit(1)
	}
	os.Exit(0)
}

//promptCredentials asks for the gateway username when none is
//configured and always for the password, which is never echoed. The
//domain is taken from the configuration and is not prompted for.
func promptCredentials(hostname string) (utils.Credentials, bool, error) {
	creds := utils.Credentials{
		Username: config.GatewayUsername,
		Domain:   config.GatewayDomain,
	}
	if creds.Username == "" {
		fmt.Printf("Gateway username for %s: ", hostname)
		if _, err := fmt.Scanln(&creds.Username); err != nil {
			return utils.Credentials{}, false, nil
		}
	}
	fmt.Printf("Gateway password: ")
	pass, err := gopass.GetPasswd()
	if err != nil {
		if err == gopass.ErrInterrupted {
			return utils.Credentials{}, false, nil
		}
		return utils.Credentials{}, false, err
	}
	creds.Password = string(pass)
	return creds, true, nil
}

//applyConfig merges the yaml config file and the command line flags
//into the global session settings, flags win
func applyConfig(c *cli.Context) error {
	if c.GlobalString("config") != "" {
		yamlConfig, err := utils.ReadYml(c.GlobalString("config"))
		if err != nil {
			return fmt.Errorf("Invalid Config file: %s", err)
		}
		config.GatewayUsername = yamlConfig.Username
		config.GatewayPassword = yamlConfig.Password
		config.GatewayDomain = yamlConfig.Domain
		config.GatewayHostname = yamlConfig.Hostname
		config.Proxy = yamlConfig.Proxy
		config.Insecure = yamlConfig.Insecure
		config.UseSameCredentialsForSession = yamlConfig.SameCreds
	}

	if c.GlobalString("username") != "" {
		config.GatewayUsername = c.GlobalString("username")
	}
	if c.GlobalString("password") != "" {
		config.GatewayPassword = c.GlobalString("password")
	}
	if c.GlobalString("domain") != "" {
		config.GatewayDomain = c.GlobalString("domain")
	}
	if c.GlobalString("hostname") != "" {
		config.GatewayHostname = c.GlobalString("hostname")
	}
	if c.GlobalString("proxy") != "" {
		config.Proxy = c.GlobalString("proxy")
	}
	if c.GlobalBool("insecure") {
		config.Insecure = true
	}
	if c.GlobalBool("samecreds") {
		config.UseSameCredentialsForSession = true
	}
	config.Verbose = c.GlobalBool("verbose")
	config.CookieJar, _ = cookiejar.New(nil)

	utils.InitDefaults(config.Verbose)

	if config.GatewayHostname == "" {
		return fmt.Errorf("Required param --hostname is missing")
	}
	return nil
}

//gatewayURL the RPC proxy endpoint on the configured gateway
func gatewayURL() string {
	return fmt.Sprintf("https://%s/rpc/rpcproxy.dll?localhost:3388", config.GatewayHostname)
}

//doBind establishes the virtual connection and drives the secure bind
//to completion
func doBind(c *cli.Context) error {
	if err := applyConfig(c); err != nil {
		return cli.NewExitError(err, 1)
	}

	//credentials are needed before the legs open, the HTTP channels
	//authenticate with the same triple the bind uses
	if config.GatewayUsername == "" || config.GatewayPassword == "" {
		creds, ok, err := promptCredentials(config.GatewayHostname)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		if !ok {
			return cli.NewExitError(fmt.Errorf("cancelled"), 1)
		}
		config.GatewayUsername = creds.Username
		config.GatewayDomain = creds.Domain
		config.GatewayPassword = creds.Password
	}

	transport := rpchttp.NewTransport(&config)
	utils.Info.Printf("Opening virtual connection to %s", config.GatewayHostname)
	if err := transport.VirtualConnection(gatewayURL()); err != nil {
		return cli.NewExitError(err, 1)
	}
	defer transport.Close()

	session := rpchttp.NewBindSession(&config, promptCredentials, nil, transport.In(), transport.Out())

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.Int("timeout"))*time.Second)
	defer cancel()

	params, err := session.Run(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	utils.Info.Printf("Bind established. xmit frag: %d, recv frag: %d, assoc group: 0x%08x",
		params.MaxXmitFrag, params.MaxRecvFrag, params.AssocGroupID)
	return nil
}

//doCheck verifies the gateway answers NTLM authenticated requests on
//the RPC proxy endpoint
func doCheck(c *cli.Context) error {
	if err := applyConfig(c); err != nil {
		return cli.NewExitError(err, 1)
	}
	if config.GatewayUsername == "" || config.GatewayPassword == "" {
		creds, ok, err := promptCredentials(config.GatewayHostname)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		if !ok {
			return cli.NewExitError(fmt.Errorf("cancelled"), 1)
		}
		config.GatewayUsername = creds.Username
		config.GatewayDomain = creds.Domain
		config.GatewayPassword = creds.Password
	}

	rt := utils.WithHeader(httpntlm.NewTransport(&config))
	rt.Set("User-Agent", "MSRPC")
	rt.Set("Accept", "application/rpc")
	rt.Set("Cache-Control", "no-cache")
	client := http.Client{Transport: rt, Timeout: time.Minute}
	req, err := http.NewRequest("RPC_IN_DATA", gatewayURL(), nil)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	resp, err := client.Do(req)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("Gateway check failed: %s", err), 1)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return cli.NewExitError(fmt.Errorf("Gateway rejected the supplied credentials"), 1)
	}
	utils.Info.Printf("Gateway %s answered with %s, RPC proxy looks alive", config.GatewayHostname, resp.Status)
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "tsgw"
	app.Usage = "A tool to speak RPC over HTTP to a terminal services gateway"
	app.Version = "1.0.0"
	app.Author = "SensePost"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "domain,d",
			Value: "",
			Usage: "A domain for the gateway user",
		},
		cli.StringFlag{
			Name:  "username,u",
			Value: "",
			Usage: "A username to authenticate to the gateway with",
		},
		cli.StringFlag{
			Name:  "password,p",
			Value: "",
			Usage: "A password to authenticate to the gateway with",
		},
		cli.StringFlag{
			Name:  "hostname",
			Value: "",
			Usage: "The hostname of the terminal services gateway",
		},
		cli.StringFlag{
			Name:  "config",
			Value: "",
			Usage: "The path to a config file to use",
		},
		cli.StringFlag{
			Name:  "proxy",
			Value: "",
			Usage: "A SOCKS5 proxy to use (socks5://ip:port)",
		},
		cli.BoolFlag{
			Name:  "insecure,k",
			Usage: "Ignore server SSL certificate errors",
		},
		cli.BoolFlag{
			Name:  "samecreds",
			Usage: "Use the gateway credentials for the remote session as well",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Be verbose and show some of the inner workings",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:    "bind",
			Aliases: []string{"b"},
			Usage:   "Establish the authenticated RPC bind with the gateway",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "timeout",
					Value: 30,
					Usage: "Seconds to wait for the gateway's bind response",
				},
			},
			Action: doBind,
		},
		{
			Name:    "check",
			Aliases: []string{"c"},
			Usage:   "Check that the gateway's RPC proxy endpoint accepts our credentials",
			Action:  doCheck,
		},
	}

	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return cli.NewExitError("", 1)
	}

	if err := app.Run(os.Args); err != nil {
		exit(err)
	}
}
