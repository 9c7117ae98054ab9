package session

import "fmt"

// Chat replies. Wording is part of the bot's user interface.
const (
	MsgStart               = "Masukkan password cuy... this bot isn't for public"
	MsgPasswordAccepted    = "masukkan Audio dan judul video yang akan diupload"
	MsgAttemptsExhausted   = "Password salah berulang kali. Proses dibatalkan."
	MsgEmptyTitle          = "Judul tidak boleh kosong."
	MsgTitleStored         = "Judul diterima. Silakan kirim audionya sekarang."
	MsgAudioStored         = "Audio diterima. Silakan kirim judul video."
	MsgAudioAwaiting       = "Audio diterima. Mengunduh dan akan diproses jika judul sudah ada."
	MsgAudioNeedsPassword  = "Audio diterima. Silakan masukkan password untuk melanjutkan."
	MsgDispatched          = "Audio dan judul lengkap. Memproses & mengupload ke YouTube..."
	MsgProcessing          = "Proses sedang berjalan. Mohon tunggu."
	MsgNoSession           = "Ketik /start untuk memulai. Setelah itu masukkan password, lalu kirim audio dan judul (boleh urutannya terbalik)."
	MsgNotAudio            = "Tipe file bukan audio. Kirim audio/voice note."
	MsgFFmpegMissing       = "ffmpeg tidak ditemukan di PATH. Install ffmpeg dan coba lagi."
	MsgLocatorFailed       = "Gagal mengambil file dari Telegram (timeout). Coba kirim ulang."
	MsgDownloadExhausted   = "Gagal mengunduh audio setelah beberapa percobaan. Coba kirim ulang."
	MsgDownloadFailed      = "Gagal mengunduh audio. Coba kirim ulang."
	MsgServerError         = "Terjadi error di server. Cek log."
	msgWrongPasswordFormat = "Password salah. (sisa percobaan: %d)"
)

// WrongPassword reports a failed password attempt with the attempts left.
func WrongPassword(remaining int) string {
	return fmt.Sprintf(msgWrongPasswordFormat, remaining)
}

// UploadSucceeded is the terminal success message for a pipeline run.
func UploadSucceeded(url string) string {
	return "✅ Selesai! Video terupload: " + url
}

// UploadFailed is the terminal failure message for a pipeline run.
func UploadFailed(reason string) string {
	return "❌ Upload gagal: " + reason
}

// ReceiveFailed reports an unexpected error while accepting an audio message.
func ReceiveFailed(err error) string {
	return fmt.Sprintf("Terjadi error saat menerima audio: %v", err)
}
