// @title        Photo Mailer API
// @description  Accepts a photo with an email address and nickname, stores it and emails it back.
// @BasePath     /
package main

import (
	"log"
	"time"

	_ "github.com/anoixa/photo-mailer/docs"

	"github.com/anoixa/photo-mailer/cmd"
	"github.com/anoixa/photo-mailer/config"
)

func init() {
	var cstZone = time.FixedZone("CST", 8*3600) // 东八
	time.Local = cstZone
}

func main() {
	log.Printf("photo mailer %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
