package main

import "github.com/giantswarm/oauth-client/cmd/oauth2-login/cmd"

func main() {
	cmd.Execute()
}
