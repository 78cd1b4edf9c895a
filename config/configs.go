package config

import (
	"encoding/xml"
	"fmt"
	"os"
)

// 10.0.4.10:8436
var MainRouter string
var Dbname string
var Download string
var RootPath string
var DeviceName string
var MainConfig Config

type Config struct {
	XMLName    xml.Name `xml:"config"`
	MainRouter string   `xml:"MainRouter"`
	Dbname     string   `xml:"dbname"`
	RootPath   string   `xml:"RootPath"`
	Download   string   `xml:"download"`
	DeviceName string   `xml:"DeviceName"`
}

func init() {

	xmlFile, err := os.Open("config.xml")
	if err != nil {
		fmt.Println("Error  opening  file:", err)
		return
	}
	defer xmlFile.Close()

	xmlDecoder := xml.NewDecoder(xmlFile)
	err = xmlDecoder.Decode(&MainConfig)
	if err != nil {
		fmt.Println("Error  decoding  XML:", err)
		return
	}
	MainRouter = MainConfig.MainRouter
	Dbname = MainConfig.Dbname
	RootPath = MainConfig.RootPath
	Download = MainConfig.Download
	DeviceName = MainConfig.DeviceName

	if MainRouter == "" {
		MainRouter = "0.0.0.0:8436"
	}
	if Download == "" {
		Download = "./download"
	}
	if Dbname == "" {
		Dbname = "surveytin.db"
	}
}
